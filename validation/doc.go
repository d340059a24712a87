// Package validation checks configuration before a stream is built.
//
// Struct tag validation covers loaded configuration:
//
//	type StreamConfig struct {
//	    Width int `mapstructure:"width" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// Programmatic validation covers constructor arguments:
//
//	v := validation.New()
//	v.Positive("size", size)
//	if err := v.Validate(); err != nil {
//	    return nil, err
//	}
//
// Both report an INVALID_CONFIG errors.AppError listing every failing field.
package validation
