package utils

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFlags are used by every component logger: microsecond UTC timestamps
const LogFlags = log.LstdFlags | log.Lmicroseconds | log.LUTC

// LogFileOptions configures the rotating log file shared by background components
type LogFileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type logOutput struct {
	io.Writer
	closer io.Closer
}

func (o *logOutput) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// NewLogOutput writes to stdout and, when opts.Path is set, to a rotating file.
// Share one output between component loggers so only one rotator owns the file.
func NewLogOutput(opts LogFileOptions) io.WriteCloser {
	if opts.Path == "" {
		return &logOutput{Writer: os.Stdout}
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	return &logOutput{Writer: io.MultiWriter(os.Stdout, rotator), closer: rotator}
}

// NewLogger creates a prefixed component logger on out
func NewLogger(out io.Writer, prefix string) *log.Logger {
	return log.New(out, prefix, LogFlags)
}
