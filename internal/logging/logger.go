package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Console adds a human readable writer on stderr.
	Console bool
}

// New builds the root logger. The returned closer releases the log file and
// is never nil.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)
	if opts.File != "" {
		maxSize := int64(opts.MaxSizeMB) * 1024 * 1024
		if maxSize <= 0 {
			maxSize = 20 * 1024 * 1024
		}
		fw, err := NewRotatingFileWriter(opts.File, maxSize, opts.MaxBackups)
		if err != nil {
			return zerolog.Nop(), closer, err
		}
		writers = append(writers, fw)
		closer = fw
	}
	if opts.Console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("service", "accountforge").
		Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
