package sharedptr

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Config holds package-wide settings.
type Config struct {
	// Logger receives adopt/destroy debug events, deleter failures and
	// leak reports. Nil means zap.NewNop().
	Logger *zap.Logger

	// TrackLeaks registers a runtime cleanup on every new control block.
	// A block collected while it still had owners is logged and counted
	// in Leaks. The deleter is never run on that path.
	TrackLeaks bool
}

var (
	config atomic.Pointer[Config]
	leaks  atomic.Int64
)

func init() {
	Configure(Config{})
}

// Configure installs cfg. Blocks adopted before the call keep the leak
// tracking they were created with.
func Configure(cfg Config) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	config.Store(&cfg)
}

// CurrentConfig returns the settings in effect.
func CurrentConfig() Config {
	return *config.Load()
}

// Leaks returns how many control blocks have been collected while still
// owned. Only blocks created with TrackLeaks enabled are counted.
func Leaks() int64 {
	return leaks.Load()
}

func logger() *zap.Logger {
	return config.Load().Logger
}
