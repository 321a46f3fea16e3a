package chainmap

import (
	"github.com/goliatone/go-chainmap/internal/hydrate"
)

// DecodeOption configures Decode.
type DecodeOption func(*decodeConfig)

type decodeConfig struct {
	separator       string
	useNumber       bool
	disallowUnknown bool
	deepMerge       bool
	preHooks        []func(map[string]any) (map[string]any, error)
}

// WithKeySeparator nests flat keys such as "db.host" before decoding.
func WithKeySeparator(separator string) DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.separator = separator
	}
}

// WithUseNumber decodes numbers into interface fields as json.Number.
func WithUseNumber() DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.useNumber = true
	}
}

// WithStrictFields rejects keys that have no matching field in the target.
func WithStrictFields() DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.disallowUnknown = true
	}
}

// WithDeepMerge decodes from Merged instead of ToMap, so nested objects
// combine across layers.
func WithDeepMerge() DecodeOption {
	return func(cfg *decodeConfig) {
		cfg.deepMerge = true
	}
}

// WithPayloadHook rewrites the flattened payload before decoding.
func WithPayloadHook(hook func(map[string]any) (map[string]any, error)) DecodeOption {
	return func(cfg *decodeConfig) {
		if hook != nil {
			cfg.preHooks = append(cfg.preHooks, hook)
		}
	}
}

// Decode flattens c and decodes the effective values into T through their
// JSON representation. Shadowed values never reach the decoder.
func Decode[T any](c *Chain[string, any], opts ...DecodeOption) (T, error) {
	cfg := decodeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	var decoderOpts []hydrate.DecoderOption[T]
	for _, hook := range cfg.preHooks {
		hook := hook
		decoderOpts = append(decoderOpts, hydrate.WithPreHook[T](func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
			return hook(payload)
		}))
	}
	if cfg.separator != "" {
		decoderOpts = append(decoderOpts, hydrate.WithKeySeparator[T](cfg.separator))
	}
	if cfg.useNumber {
		decoderOpts = append(decoderOpts, hydrate.WithUseNumber[T]())
	}
	if cfg.disallowUnknown {
		decoderOpts = append(decoderOpts, hydrate.WithDisallowUnknownFields[T]())
	}

	if c == nil {
		c = New[string, any](nil)
	}
	ctx := hydrate.Context{Chain: c.id, Scope: c.scopes[0].Name}
	payload := c.ToMap()
	if cfg.deepMerge {
		payload = Merged(c)
	}
	return hydrate.NewDecoder(decoderOpts...).Decode(ctx, payload)
}
