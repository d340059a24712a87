package logger

import (
	"sync"
)

// PipelineComponent is the component every stage logger is tagged with.
const PipelineComponent = "pipeline"

// registry is the global named-logger registry.
var registry = &loggerRegistry{
	loggers: make(map[string]*Logger),
}

type loggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

// Register stores a named logger in the registry.
func Register(name string, l *Logger) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers[name] = l
}

// Lookup returns the logger registered under name.
func Lookup(name string) (*Logger, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	l, ok := registry.loggers[name]
	return l, ok
}

// Get retrieves a named logger. If the name is not registered it returns the
// global logger tagged with the requested component name.
func Get(name string) *Logger {
	if l, ok := Lookup(name); ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterStages registers the shared pipeline logger and one logger per
// entry of levels, keyed by stage name. A stage logger is the pipeline
// logger running at its own level, so a single noisy stage can be traced
// without lowering the level of the whole run.
func RegisterStages(levels map[string]string) {
	base := GetGlobalLogger().WithComponent(PipelineComponent)
	Register(PipelineComponent, base)
	for stage, level := range levels {
		Register(stage, base.WithLevel(level))
	}
}

// StageLogger returns the logger registered for stage, falling back to the
// shared pipeline logger.
func StageLogger(stage string) *Logger {
	if l, ok := Lookup(stage); ok {
		return l
	}
	return Get(PipelineComponent)
}

// Reset drops every registered logger.
func Reset() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.loggers = make(map[string]*Logger)
}
