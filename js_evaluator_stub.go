//go:build !js_eval

package chainmap

// NewJSEvaluator is unavailable without the js_eval build tag and returns nil.
func NewJSEvaluator(...JSEvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}

func isJSEvaluator(Evaluator) bool {
	return false
}
