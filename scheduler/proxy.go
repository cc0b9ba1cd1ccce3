package scheduler

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// transformKind tags one deferred operation recorded on a ReturnProxy.
// This is the closed algebraic description spec.md Design Note 9 calls
// for in place of the dynamic-language proxy the original library uses.
type transformKind int

const (
	transformCall transformKind = iota
	transformAttr
	transformIndex
)

type transformation struct {
	kind   transformKind
	args   []any
	kwargs map[string]any
	name   string
	key    any
}

// ReturnProxy is a placeholder value referencing another task's
// eventual return value, carrying an ordered list of deferred
// transformations. It is never evaluated until the consuming task
// launches; ParameterBinder interprets the chain at that point.
//
// Using a ReturnProxy anywhere in another TaskSpec's args or kwargs
// implicitly adds the producing task to that consumer's prerequisite
// set (see DependencyGraph.Prerequisites).
type ReturnProxy struct {
	task            *TaskSpec
	transformations []transformation
}

// Producer returns the TaskSpec this proxy is bound to.
func (p *ReturnProxy) Producer() *TaskSpec { return p.task }

// Call records a deferred invocation of the current value with the
// given positional and keyword arguments, and returns the same proxy so
// calls can be chained.
func (p *ReturnProxy) Call(args []any, kwargs map[string]any) *ReturnProxy {
	p.transformations = append(p.transformations, transformation{
		kind:   transformCall,
		args:   append([]any(nil), args...),
		kwargs: kwargs,
	})
	return p
}

// Attr records a deferred field/attribute access by name and returns
// the same proxy so calls can be chained.
func (p *ReturnProxy) Attr(name string) *ReturnProxy {
	p.transformations = append(p.transformations, transformation{
		kind: transformAttr,
		name: name,
	})
	return p
}

// Index records a deferred indexing operation (slice index, array
// index, or map key) and returns the same proxy so calls can be
// chained.
func (p *ReturnProxy) Index(key any) *ReturnProxy {
	p.transformations = append(p.transformations, transformation{
		kind: transformIndex,
		key:  key,
	})
	return p
}

// String renders a debug-friendly chain description, e.g.
// `task("A").Index(1).Attr("Name")`, echoing
// original_source/parallelism/core/return_value.py's __repr__ but made
// useful for diagnosing a failed ParameterBinder resolution.
func (p *ReturnProxy) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "task(%q)", p.task.Name())
	for _, t := range p.transformations {
		switch t.kind {
		case transformCall:
			fmt.Fprintf(&b, ".Call(%v, %v)", t.args, t.kwargs)
		case transformAttr:
			fmt.Fprintf(&b, ".Attr(%q)", t.name)
		case transformIndex:
			fmt.Fprintf(&b, ".Index(%v)", t.key)
		}
	}
	return b.String()
}

// resolve interprets the transformation chain against a producer's
// resolved return value, in order, exactly as
// original_source/parallelism/core/handlers/parameters_handler.py does.
func (p *ReturnProxy) resolve(returnValue any) (any, error) {
	value := reflect.ValueOf(returnValue)
	current := returnValue
	for _, t := range p.transformations {
		switch t.kind {
		case transformCall:
			fn, ok := current.(func(args []any, kwargs map[string]any) any)
			if !ok {
				return nil, errors.Errorf("cannot call non-callable value produced by %s", p)
			}
			current = fn(t.args, t.kwargs)
			value = reflect.ValueOf(current)
		case transformAttr:
			value = reflect.ValueOf(current)
			for value.Kind() == reflect.Ptr {
				value = value.Elem()
			}
			if value.Kind() != reflect.Struct {
				return nil, errors.Errorf("cannot read attribute %q of non-struct value produced by %s", t.name, p)
			}
			field := value.FieldByName(t.name)
			if !field.IsValid() {
				return nil, errors.Errorf("no attribute %q on value produced by %s", t.name, p)
			}
			current = field.Interface()
		case transformIndex:
			var err error
			current, err = indexValue(current, t.key)
			if err != nil {
				return nil, errors.Wrapf(err, "indexing value produced by %s", p)
			}
		}
	}
	return current, nil
}

func indexValue(value any, key any) (any, error) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		idx, ok := key.(int)
		if !ok {
			return nil, errors.Errorf("index %v is not an int for a slice/array value", key)
		}
		if idx < 0 || idx >= v.Len() {
			return nil, errors.Errorf("index %d out of range (len=%d)", idx, v.Len())
		}
		return v.Index(idx).Interface(), nil
	case reflect.Map:
		keyValue := reflect.ValueOf(key)
		mapValue := v.MapIndex(keyValue)
		if !mapValue.IsValid() {
			return nil, errors.Errorf("key %v not found in map", key)
		}
		return mapValue.Interface(), nil
	default:
		return nil, errors.Errorf("value of kind %s is not indexable", v.Kind())
	}
}
