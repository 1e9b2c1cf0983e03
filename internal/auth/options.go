package auth

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Option configures the services in this package.
type Option func(*options)

type options struct {
	now     func() time.Time
	entropy io.Reader
	logger  zerolog.Logger
}

func defaultOptions() options {
	return options{
		now:     time.Now,
		entropy: defaultEntropy,
		logger:  zerolog.Nop(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithEntropy replaces the random source used for single-use tokens.
func WithEntropy(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.entropy = r
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
