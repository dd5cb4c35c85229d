package contract

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	ErrInvalidMethod = errors.New("invalid method")
	ErrEmptyPath     = errors.New("path template must not be empty")
	ErrInvalidStatus = errors.New("invalid expected status")
	ErrMissingParam  = errors.New("missing path parameter")
)

type Method string

const (
	GET    Method = "GET"
	POST   Method = "POST"
	PUT    Method = "PUT"
	DELETE Method = "DELETE"
)

// ParseMethod accepts a method name in any case.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q (want GET, POST, PUT or DELETE)", ErrInvalidMethod, s)
	}
	return m, nil
}

func (m Method) Valid() bool {
	switch m {
	case GET, POST, PUT, DELETE:
		return true
	}
	return false
}

func (m Method) String() string {
	return string(m)
}

// EndpointContract is a declarative description of one HTTP call and its
// expected outcome. Values returned by New must not be modified.
type EndpointContract struct {
	Name         string
	Description  string
	Tags         []string
	Method       Method
	Path         string
	Params       map[string]any
	Headers      map[string]string
	Body         map[string]any
	ExpectStatus int
	Assertions   []Rule
	Only         bool
	Skip         string
}

type Option func(*EndpointContract)

func WithName(name string) Option {
	return func(c *EndpointContract) {
		c.Name = name
	}
}

func WithDescription(desc string) Option {
	return func(c *EndpointContract) {
		c.Description = desc
	}
}

func WithTags(tags ...string) Option {
	return func(c *EndpointContract) {
		c.Tags = append(c.Tags, tags...)
	}
}

// WithParams sets literal path parameters owned by the contract. They take
// precedence over parameters supplied by the caller at run time.
func WithParams(params map[string]any) Option {
	return func(c *EndpointContract) {
		if c.Params == nil {
			c.Params = make(map[string]any, len(params))
		}
		maps.Copy(c.Params, params)
	}
}

func WithHeaders(headers map[string]string) Option {
	return func(c *EndpointContract) {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(headers))
		}
		maps.Copy(c.Headers, headers)
	}
}

// WithBody sets the JSON request body.
func WithBody(body map[string]any) Option {
	return func(c *EndpointContract) {
		c.Body = deepCopyMap(body)
	}
}

func WithAssertions(rules ...Rule) Option {
	return func(c *EndpointContract) {
		c.Assertions = append(c.Assertions, rules...)
	}
}

// WithOnly marks the contract as focused: when any contract in a file is
// focused, only focused contracts run.
func WithOnly(only bool) Option {
	return func(c *EndpointContract) {
		c.Only = only
	}
}

func WithSkip(reason string) Option {
	return func(c *EndpointContract) {
		c.Skip = reason
	}
}

// New builds and validates a contract.
func New(method Method, path string, expectStatus int, opts ...Option) (*EndpointContract, error) {
	c := &EndpointContract{
		Method:       method,
		Path:         path,
		ExpectStatus: expectStatus,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is like New but panics on an invalid contract. Intended for
// contracts declared in code.
func MustNew(method Method, path string, expectStatus int, opts ...Option) *EndpointContract {
	c, err := New(method, path, expectStatus, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *EndpointContract) Validate() error {
	if !c.Method.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, c.Method)
	}
	if strings.TrimSpace(c.Path) == "" {
		return ErrEmptyPath
	}
	if c.ExpectStatus < 100 || c.ExpectStatus > 599 {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, c.ExpectStatus)
	}
	for i, r := range c.Assertions {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}
	return nil
}

// DisplayName returns the contract name, falling back to "METHOD path".
func (c *EndpointContract) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%s %s", c.Method, c.Path)
}

func (c *EndpointContract) HasBody() bool {
	return c.Body != nil
}

func (c *EndpointContract) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}

// Skipped records a contract that was selected out of a run.
type Skipped struct {
	Contract *EndpointContract
	Reason   string
}
