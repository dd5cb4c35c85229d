package env

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitcontract/packages/builtin"
)

var (
	variablePattern   = regexp.MustCompile(`\{\{([^}]+)\}\}`)
	wholeValuePattern = regexp.MustCompile(`^\{\{([^}]+)\}\}$`)
)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver handles variable resolution with thread-safe access to variables.
// It supports process and .env variables, built-in functions and
// user-defined variables.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	dotenv    map[string]string
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

type Option func(*Resolver)

// WithRegistry replaces the built-in function registry.
func WithRegistry(reg *builtin.Registry) Option {
	return func(r *Resolver) {
		r.funcs = reg
	}
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		variables: make(map[string]any),
		dotenv:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.funcs == nil {
		r.funcs = builtin.NewRegistry()
	}
	return r
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// SetDotEnv registers values loaded from a .env file. They are consulted
// by {{$NAME}} before the process environment.
func (r *Resolver) SetDotEnv(vars map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.dotenv[k] = v
	}
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

func (r *Resolver) lookupEnv(name string) (string, bool) {
	r.mu.RLock()
	v, ok := r.dotenv[name]
	r.mu.RUnlock()
	if ok {
		return v, true
	}
	return os.LookupEnv(name)
}

// evaluate resolves the inside of one {{...}} reference.
func (r *Resolver) evaluate(expr string) (any, bool) {
	expr = strings.TrimSpace(expr)

	if strings.HasPrefix(expr, "$") {
		if val, ok := r.lookupEnv(expr[1:]); ok {
			return val, true
		}
		r.warn("unresolved environment variable: %s", expr)
		return nil, false
	}

	if builtin.IsCall(expr) {
		val, ok, err := r.funcs.Call(expr)
		if err != nil {
			r.warn("function call failed: %v", err)
			return nil, false
		}
		if ok {
			return val, true
		}
		r.warn("unresolved function call: %s", expr)
		return nil, false
	}

	if val, ok := r.GetVariable(expr); ok {
		return val, true
	}

	r.warn("unresolved variable: %s", expr)
	return nil, false
}

// Resolve interpolates every {{...}} reference in input. Unresolved
// references are left in place.
func (r *Resolver) Resolve(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		val, ok := r.evaluate(match[2 : len(match)-2])
		if !ok {
			return match
		}
		return fmt.Sprintf("%v", val)
	})
}

// ResolveValue walks maps and slices, resolving every string. A string that
// is exactly one reference is replaced by the referenced value itself.
func (r *Resolver) ResolveValue(v any) any {
	switch val := v.(type) {
	case string:
		if m := wholeValuePattern.FindStringSubmatch(val); m != nil && !strings.Contains(m[1], "{{") {
			if resolved, ok := r.evaluate(m[1]); ok {
				return resolved
			}
			return val
		}
		return r.Resolve(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = r.ResolveValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.ResolveValue(item)
		}
		return out
	default:
		return v
	}
}

func (r *Resolver) ResolveAll(values map[string]string) map[string]string {
	if values == nil {
		return nil
	}
	result := make(map[string]string, len(values))
	for k, v := range values {
		result[k] = r.Resolve(v)
	}
	return result
}

// DefineVariables resolves vars and registers each result. A value that
// references another key of vars is resolved after it, so declaration order
// does not matter; keys in a reference cycle are resolved in key order and
// keep their unresolved references. Function calls are evaluated here
// exactly once.
func (r *Resolver) DefineVariables(vars map[string]any) map[string]any {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(vars))
	visiting := make(map[string]bool, len(vars))

	var define func(k string)
	define = func(k string) {
		if _, done := out[k]; done || visiting[k] {
			return
		}
		visiting[k] = true
		for _, dep := range references(vars[k]) {
			if _, ok := vars[dep]; ok {
				define(dep)
			}
		}
		resolved := r.ResolveValue(vars[k])
		out[k] = resolved
		r.SetVariable(k, resolved)
	}

	for _, k := range keys {
		define(k)
	}
	return out
}

// references returns the plain variable names used by {{...}} references
// anywhere in v, in order of appearance.
func references(v any) []string {
	var names []string
	var walk func(any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			for _, m := range variablePattern.FindAllStringSubmatch(val, -1) {
				expr := strings.TrimSpace(m[1])
				if strings.HasPrefix(expr, "$") || builtin.IsCall(expr) {
					continue
				}
				names = append(names, expr)
			}
		case map[string]any:
			for _, item := range val {
				walk(item)
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(v)
	return names
}

// HasUnresolved reports whether input contains a reference that cannot be
// resolved. Functions are not invoked.
func (r *Resolver) HasUnresolved(input string) bool {
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		expr := strings.TrimSpace(m[1])
		switch {
		case strings.HasPrefix(expr, "$"):
			if _, ok := r.lookupEnv(expr[1:]); !ok {
				return true
			}
		case builtin.IsCall(expr):
			continue
		default:
			if !r.HasVariable(expr) {
				return true
			}
		}
	}
	return false
}

func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}
