package contract

import (
	"fmt"
	"net/url"
	"regexp"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)

// Placeholders returns the parameter names referenced by a path template,
// in order of appearance.
func Placeholders(template string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(template, -1) {
		names = append(names, m[1])
	}
	return names
}

// ExpandPath substitutes {name} slots with path-escaped values from params.
// Substitution is literal; nothing is inferred from the values.
func ExpandPath(template string, params map[string]any) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		v, ok := params[name]
		if !ok || v == nil {
			if missing == "" {
				missing = name
			}
			return match
		}
		return url.PathEscape(fmt.Sprint(v))
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, missing)
	}
	return out, nil
}

// EffectiveParams merges caller parameters with the contract's own; the
// contract's literals win.
func (c *EndpointContract) EffectiveParams(callerParams map[string]any) map[string]any {
	out := make(map[string]any, len(callerParams)+len(c.Params))
	for k, v := range callerParams {
		out[k] = v
	}
	for k, v := range c.Params {
		out[k] = v
	}
	return out
}
