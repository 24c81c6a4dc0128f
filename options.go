package cfb

import "go.uber.org/zap"

const defaultBlockCacheSize = 256

type cfg struct {
	l              *zap.Logger
	validation     Validation
	blockCacheSize int
	readOnly       bool
}

// Option allows setting optional parameters of a Storage.
type Option func(*cfg)

func defaultCfg() *cfg {
	return &cfg{
		l:              zap.NewNop(),
		validation:     ValidationPermissive,
		blockCacheSize: defaultBlockCacheSize,
	}
}

// WithLogger returns an option to specify
// logger.
func WithLogger(v *zap.Logger) Option {
	return func(c *cfg) {
		if v != nil {
			c.l = v
		}
	}
}

// WithValidation returns an option to choose between
// permissive and strict structure checks on open.
func WithValidation(v Validation) Option {
	return func(c *cfg) {
		c.validation = v
	}
}

// WithBlockCacheSize returns an option to set the number
// of big sectors kept in memory. Zero disables the cache.
func WithBlockCacheSize(n int) Option {
	return func(c *cfg) {
		if n >= 0 {
			c.blockCacheSize = n
		}
	}
}

// WithReadOnly returns an option that rejects every
// write to the underlying file.
func WithReadOnly() Option {
	return func(c *cfg) {
		c.readOnly = true
	}
}
