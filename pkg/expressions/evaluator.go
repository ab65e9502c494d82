// Package expressions reads fields out of decoded backend envelopes with JMESPath.
package expressions

import (
	"fmt"
	"sync"

	"github.com/jmespath/go-jmespath"
)

// Evaluator runs JMESPath expressions, compiling each distinct expression once
type Evaluator struct {
	compiled sync.Map // expression -> *jmespath.JMESPath
}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func (e *Evaluator) compile(expression string) (*jmespath.JMESPath, error) {
	if cached, ok := e.compiled.Load(expression); ok {
		return cached.(*jmespath.JMESPath), nil
	}

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}
	actual, _ := e.compiled.LoadOrStore(expression, compiled)
	return actual.(*jmespath.JMESPath), nil
}

// Search evaluates expression against data. A path that does not exist yields nil.
func (e *Evaluator) Search(expression string, data any) (any, error) {
	compiled, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	found, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %q: %w", expression, err)
	}
	return found, nil
}

// Objects returns the objects at expression. A single object counts as a list of one so
// that list and single-record envelopes read the same.
func (e *Evaluator) Objects(expression string, data any) ([]map[string]any, error) {
	found, err := e.Search(expression, data)
	if err != nil || found == nil {
		return nil, err
	}

	items, ok := found.([]any)
	if !ok {
		items = []any{found}
	}

	objects := make([]map[string]any, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is %T, not an object", expression, i, item)
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

// Object returns the object at expression, or nil when the path is missing
func (e *Evaluator) Object(expression string, data any) (map[string]any, error) {
	found, err := e.Search(expression, data)
	if err != nil || found == nil {
		return nil, err
	}

	obj, ok := found.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s is %T, not an object", expression, found)
	}
	return obj, nil
}

// FirstString returns the first of expressions that resolves to a non-empty scalar,
// rendered as text
func (e *Evaluator) FirstString(data any, expressions ...string) string {
	for _, expression := range expressions {
		found, err := e.Search(expression, data)
		if err != nil || found == nil {
			continue
		}
		switch v := found.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any, []any:
		default:
			return fmt.Sprint(v)
		}
	}
	return ""
}
