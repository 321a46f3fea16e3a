package chainmap

import (
	"strings"

	"github.com/goliatone/go-chainmap/pkg/activity"
	"github.com/google/uuid"
)

// Option configures a Chain at construction. Children and parent views
// inherit the configuration of the chain they were derived from.
type Option func(*config)

type config struct {
	mode     WriteMode
	logger   Logger
	hooks    activity.Hooks
	activity activity.Config
	emitter  *activity.Emitter
	id       string
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.emitter = activity.NewEmitter(cfg.hooks, cfg.activity)
	return cfg
}

// derive returns the configuration for a view built from an existing chain.
// Explicit ids are not inherited.
func (cfg config) derive() config {
	cfg.id = ""
	return cfg
}

func (cfg config) chainID() string {
	if id := strings.TrimSpace(cfg.id); id != "" {
		return id
	}
	if cfg.emitter.Enabled() {
		return uuid.NewString()
	}
	return ""
}

func (cfg config) log() Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopLogger{}
}

// WithDeepWrites selects DeepWrites for Set and Delete.
func WithDeepWrites() Option {
	return func(cfg *config) {
		cfg.mode = WriteModeDeep
	}
}

// WithWriteMode selects a built-in write policy.
func WithWriteMode(mode WriteMode) Option {
	return func(cfg *config) {
		cfg.mode = mode
	}
}

// WithLogger attaches a logger for mutations, misses and hook failures.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithActivityHooks attaches activity hooks and enables emission. Nil hooks
// are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.hooks = normalized
		cfg.activity.Enabled = len(normalized) > 0
	}
}

// WithActivityConfig overrides the emitter configuration. Apply it after
// WithActivityHooks to disable emission or change the default channel.
func WithActivityConfig(activityCfg activity.Config) Option {
	return func(cfg *config) {
		cfg.activity = activityCfg
	}
}

// WithChainID sets the identifier reported in activity events.
func WithChainID(id string) Option {
	return func(cfg *config) {
		cfg.id = id
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
