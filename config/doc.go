// Package config loads service configuration with Viper.
//
// LoadConfig looks for config.yml and .env files in the usual places
// (./cmd/<service>/, ./config/, the working directory), then lets environment
// variables override file values: STREAM_WIDTH sets stream.width.
//
//	var cfg config.AppConfig
//	if err := config.LoadConfig("chanflow", &cfg); err != nil {
//	    return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
