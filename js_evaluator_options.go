package chainmap

// JSEvaluatorOption configures the goja evaluator built with the js_eval tag.
type JSEvaluatorOption func(*jsEvaluator)

// JSWithProgramCache shares compiled scripts between evaluations.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(e *jsEvaluator) {
		e.cache = cache
	}
}

// JSWithFunctionRegistry installs registry functions as script globals and
// behind call(name, ...args).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(e *jsEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// jsEvaluator gains its methods in js_evaluator.go under the js_eval tag.
type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}
