package model

// Logger is the logging interface used throughout the pipeline. It is out
// of the box compatible with `log.Log` and `*log.Entry` from apex/log.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...interface{})

	// Infof formats and emits an informational message.
	Infof(format string, v ...interface{})

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...interface{})

	// Errorf formats and emits an error message.
	Errorf(format string, v ...interface{})
}

// DiscardLogger is the default logger that discards its input.
var DiscardLogger Logger = logDiscarder{}

type logDiscarder struct{}

func (logDiscarder) Debugf(format string, v ...interface{}) {}
func (logDiscarder) Infof(format string, v ...interface{})  {}
func (logDiscarder) Warnf(format string, v ...interface{})  {}
func (logDiscarder) Errorf(format string, v ...interface{}) {}

// ValidLoggerOrDefault returns logger if not nil and DiscardLogger otherwise.
func ValidLoggerOrDefault(logger Logger) Logger {
	if logger != nil {
		return logger
	}
	return DiscardLogger
}
