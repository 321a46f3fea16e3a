package chainmap

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyExpression is returned when an expression is blank.
var ErrEmptyExpression = errors.New("chainmap: expression must not be empty")

// RuleContext carries the inputs of one evaluation. Bindings are the
// effective key/value pairs of a chain; in every engine they shadow the
// built-in now and args values.
type RuleContext struct {
	Bindings map[string]any
	Now      *time.Time
	Args     map[string]any
	Scope    string
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Bindings == nil {
		ctx.Bindings = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

func (ctx RuleContext) scopeLabel() string {
	if ctx.Scope != "" {
		return ctx.Scope
	}
	return "unknown"
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// EvalOption configures Evaluate.
type EvalOption func(*evalConfig)

type evalConfig struct {
	evaluator Evaluator
	cache     ProgramCache
	functions *FunctionRegistry
	logger    Logger
	args      map[string]any
	now       *time.Time
}

// WithEvaluator selects the engine. The expr engine is used when omitted.
func WithEvaluator(e Evaluator) EvalOption {
	return func(cfg *evalConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache shares compiled programs with the default evaluator.
func WithProgramCache(cache ProgramCache) EvalOption {
	return func(cfg *evalConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registry functions to the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) EvalOption {
	return func(cfg *evalConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for this evaluation.
func WithCustomFunction(name string, fn Function) EvalOption {
	return func(cfg *evalConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithArgs exposes args to the expression as the args binding.
func WithArgs(args map[string]any) EvalOption {
	return func(cfg *evalConfig) {
		cfg.args = args
	}
}

// WithNow pins the now binding.
func WithNow(now time.Time) EvalOption {
	return func(cfg *evalConfig) {
		cfg.now = &now
	}
}

// WithEvalLogger overrides the chain's logger for evaluation events.
func WithEvalLogger(logger Logger) EvalOption {
	return func(cfg *evalConfig) {
		cfg.logger = logger
	}
}

// Evaluate runs expr with identifiers resolved through c, so a name bound in
// an inner layer hides the same name in outer layers.
func Evaluate(c *Chain[string, any], expr string, opts ...EvalOption) (any, error) {
	if expr == "" {
		return nil, ErrEmptyExpression
	}
	if c == nil {
		c = New[string, any](nil)
	}
	cfg := evalConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	evaluator := cfg.evaluator
	if evaluator == nil {
		evaluator = NewExprEvaluator(ExprWithProgramCache(cfg.cache), ExprWithFunctionRegistry(cfg.functions))
	}
	logger := cfg.logger
	if logger == nil {
		logger = c.cfg.log()
	}

	ctx := RuleContext{
		Bindings: c.ToMap(),
		Now:      cfg.now,
		Args:     cfg.args,
		Scope:    c.scopes[0].Name,
	}.withDefaults()

	start := time.Now()
	value, err := evaluator.Evaluate(ctx, expr)
	engine := evaluatorEngineName(evaluator)
	err = wrapEvaluationError(engine, expr, ctx.scopeLabel(), err)
	logger.LogEvent(LogEvent{
		Op:       "evaluate",
		Chain:    c.id,
		Engine:   engine,
		Expr:     expr,
		Scope:    ctx.scopeLabel(),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// EvaluateBool runs expr and requires a boolean result.
func EvaluateBool(c *Chain[string, any], expr string, opts ...EvalOption) (bool, error) {
	value, err := Evaluate(c, expr, opts...)
	if err != nil {
		return false, err
	}
	result, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("chainmap: expression %q returned %T, want bool", expr, value)
	}
	return result, nil
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if jsEvaluatorAvailable() && isJSEvaluator(e) {
			return "js"
		}
		return "custom"
	}
}
