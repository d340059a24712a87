// Package logger provides structured logging for chanflow using zerolog.
//
// Stages, the demo CLI and the telemetry setup all log through a *Logger
// so run IDs, stage names, lanes and batch indices appear as fields rather
// than inside message text.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  stages:
//	    read: "debug"
//
// RegisterStages turns the stages map into registered loggers; a stage
// without an entry logs through the shared "pipeline" logger.
//
// # Usage
//
//	log := logger.Get("pipeline")
//	log.Info("stage finished", logger.Fields(logger.FieldStage, "read", logger.FieldItems, 42))
package logger
