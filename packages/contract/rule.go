package contract

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type RuleKind int

const (
	RuleNonEmpty RuleKind = iota
	RuleIsArray
	RuleHasKeys
	RuleFieldEquals
	RuleDeepIncludes
	RuleMatchesSchema
)

func (k RuleKind) String() string {
	switch k {
	case RuleNonEmpty:
		return "nonEmpty"
	case RuleIsArray:
		return "isArray"
	case RuleHasKeys:
		return "hasKeys"
	case RuleFieldEquals:
		return "fieldEquals"
	case RuleDeepIncludes:
		return "deepIncludes"
	case RuleMatchesSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// Rule is one checkable condition against a response body. Only the fields
// belonging to Kind are meaningful.
type Rule struct {
	Kind       RuleKind
	Keys       []string       // hasKeys
	Key        string         // fieldEquals
	Value      any            // fieldEquals
	Subset     map[string]any // deepIncludes
	SchemaPath string         // schema
}

func NonEmpty() Rule {
	return Rule{Kind: RuleNonEmpty}
}

func IsArray() Rule {
	return Rule{Kind: RuleIsArray}
}

func HasKeys(keys ...string) Rule {
	return Rule{Kind: RuleHasKeys, Keys: keys}
}

// FieldEquals checks the value at a gjson path ("userId", "user.name", "0.id").
func FieldEquals(key string, value any) Rule {
	return Rule{Kind: RuleFieldEquals, Key: key, Value: value}
}

func DeepIncludes(subset map[string]any) Rule {
	return Rule{Kind: RuleDeepIncludes, Subset: deepCopyMap(subset)}
}

func MatchesSchema(path string) Rule {
	return Rule{Kind: RuleMatchesSchema, SchemaPath: path}
}

func (r Rule) Validate() error {
	switch r.Kind {
	case RuleNonEmpty, RuleIsArray:
		return nil
	case RuleHasKeys:
		if len(r.Keys) == 0 {
			return errors.New("hasKeys needs at least one key")
		}
	case RuleFieldEquals:
		if r.Key == "" {
			return errors.New("fieldEquals needs a key")
		}
	case RuleDeepIncludes:
		if len(r.Subset) == 0 {
			return errors.New("deepIncludes needs a non-empty mapping")
		}
	case RuleMatchesSchema:
		if r.SchemaPath == "" {
			return errors.New("schema needs a file path")
		}
	default:
		return fmt.Errorf("unknown rule kind %d", r.Kind)
	}
	return nil
}

// Expected returns the rule argument for reporting.
func (r Rule) Expected() any {
	switch r.Kind {
	case RuleHasKeys:
		return r.Keys
	case RuleFieldEquals:
		return r.Value
	case RuleDeepIncludes:
		return r.Subset
	case RuleMatchesSchema:
		return r.SchemaPath
	default:
		return nil
	}
}

func (r Rule) String() string {
	switch r.Kind {
	case RuleHasKeys:
		return fmt.Sprintf("hasKeys [%s]", strings.Join(r.Keys, ", "))
	case RuleFieldEquals:
		return fmt.Sprintf("fieldEquals %s == %v", r.Key, r.Value)
	case RuleDeepIncludes:
		return fmt.Sprintf("deepIncludes %v", r.Subset)
	case RuleMatchesSchema:
		return fmt.Sprintf("schema %s", r.SchemaPath)
	default:
		return r.Kind.String()
	}
}

// UnmarshalYAML accepts the rule forms used in contract files:
//
//   - nonEmpty
//   - isArray
//   - hasKeys: [userId, title]
//   - fieldEquals: {key: userId, value: 5}
//   - deepIncludes: {title: t}
//   - schema: ./post.schema.json
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Value {
		case "nonEmpty":
			*r = NonEmpty()
		case "isArray":
			*r = IsArray()
		default:
			return fmt.Errorf("line %d: unknown assertion %q", node.Line, node.Value)
		}
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: assertion must have exactly one key", node.Line)
		}
		return r.decodeArgument(node.Content[0].Value, node.Content[1])
	default:
		return fmt.Errorf("line %d: assertion must be a name or a single-key mapping", node.Line)
	}
}

// MarshalYAML writes the rule in the same form UnmarshalYAML reads.
func (r Rule) MarshalYAML() (any, error) {
	switch r.Kind {
	case RuleNonEmpty, RuleIsArray:
		return r.Kind.String(), nil
	case RuleHasKeys:
		return map[string]any{"hasKeys": r.Keys}, nil
	case RuleFieldEquals:
		return map[string]any{"fieldEquals": map[string]any{"key": r.Key, "value": r.Value}}, nil
	case RuleDeepIncludes:
		return map[string]any{"deepIncludes": r.Subset}, nil
	case RuleMatchesSchema:
		return map[string]any{"schema": r.SchemaPath}, nil
	default:
		return nil, fmt.Errorf("unknown assertion kind %d", r.Kind)
	}
}

func (r *Rule) decodeArgument(name string, arg *yaml.Node) error {
	switch name {
	case "nonEmpty":
		*r = NonEmpty()
	case "isArray":
		*r = IsArray()
	case "hasKeys":
		var keys []string
		if err := arg.Decode(&keys); err != nil {
			return fmt.Errorf("line %d: hasKeys: %w", arg.Line, err)
		}
		*r = HasKeys(keys...)
	case "fieldEquals":
		var fe struct {
			Key   string `yaml:"key"`
			Value any    `yaml:"value"`
		}
		if err := arg.Decode(&fe); err != nil {
			return fmt.Errorf("line %d: fieldEquals: %w", arg.Line, err)
		}
		*r = FieldEquals(fe.Key, fe.Value)
	case "deepIncludes":
		var subset map[string]any
		if err := arg.Decode(&subset); err != nil {
			return fmt.Errorf("line %d: deepIncludes: %w", arg.Line, err)
		}
		*r = DeepIncludes(subset)
	case "schema":
		var path string
		if err := arg.Decode(&path); err != nil {
			return fmt.Errorf("line %d: schema: %w", arg.Line, err)
		}
		*r = MatchesSchema(path)
	default:
		return fmt.Errorf("line %d: unknown assertion %q", arg.Line, name)
	}
	return nil
}

// MapValues returns a copy of the rule with every argument value passed
// through fn. Used to resolve templates before a run.
func (r Rule) MapValues(fn func(any) any) Rule {
	out := r
	switch r.Kind {
	case RuleHasKeys:
		out.Keys = make([]string, len(r.Keys))
		for i, k := range r.Keys {
			out.Keys[i] = fmt.Sprint(fn(k))
		}
	case RuleFieldEquals:
		out.Value = fn(r.Value)
	case RuleDeepIncludes:
		if m, ok := fn(r.Subset).(map[string]any); ok {
			out.Subset = m
		}
	case RuleMatchesSchema:
		out.SchemaPath = fmt.Sprint(fn(r.SchemaPath))
	}
	return out
}
