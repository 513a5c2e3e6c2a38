package output

import (
	"fmt"
)

// Output combines colored terminal logging with file-based error logging
type Output struct {
	Logger      Logger
	ErrorLogger *ErrorLogger
}

// NewOutput creates a new Output writing errors to errorLogPath
func NewOutput(logger Logger, errorLogPath string, maxSizeMB, maxFiles int) (*Output, error) {
	if err := EnsureLogDirectory(errorLogPath); err != nil {
		return nil, fmt.Errorf("failed to ensure log directory: %w", err)
	}

	return &Output{
		Logger:      logger,
		ErrorLogger: NewErrorLogger(errorLogPath, maxSizeMB, maxFiles),
	}, nil
}

// LogError prints the entry to the terminal and appends it to the error log
func (o *Output) LogError(entry ErrorEntry) {
	o.Logger.Error("%s", entry.Summary())

	if o.ErrorLogger == nil {
		return
	}
	if err := o.ErrorLogger.Write(entry); err != nil {
		o.Logger.Error("Failed to write to error log: %v", err)
	}
}

// Close closes the error log file
func (o *Output) Close() error {
	if o.ErrorLogger == nil {
		return nil
	}
	return o.ErrorLogger.Close()
}
