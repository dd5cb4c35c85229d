package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/env"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoContracts        = errors.New("no contracts defined")
	ErrUnknownEnvironment = errors.New("unknown environment")
)

// Config is the contents of one contract file.
type Config struct {
	BaseURL         string                  `yaml:"baseUrl,omitempty"`
	TimeoutMs       int                     `yaml:"timeoutMs,omitempty"`
	Concurrency     int                     `yaml:"concurrency,omitempty"`
	Rate            float64                 `yaml:"rate,omitempty"` // requests per second, 0 = unlimited
	FollowRedirects *bool                   `yaml:"followRedirects,omitempty"`
	ValidateSSL     *bool                   `yaml:"validateSSL,omitempty"`
	Proxy           string                  `yaml:"proxy,omitempty"`
	Headers         map[string]string       `yaml:"headers,omitempty"`
	Params          map[string]any          `yaml:"params,omitempty"`
	Environments    map[string]*Environment `yaml:"environments,omitempty"`
	Contracts       []ContractSpec          `yaml:"contracts"`

	// Path is the file the config was loaded from.
	Path string `yaml:"-"`
}

// Environment overrides top-level settings when selected with --env.
type Environment struct {
	BaseURL   string            `yaml:"baseUrl,omitempty"`
	TimeoutMs int               `yaml:"timeoutMs,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Params    map[string]any    `yaml:"params,omitempty"`
}

// ContractSpec is a contract as written in a file, before templates are
// resolved.
type ContractSpec struct {
	Name         string            `yaml:"name,omitempty"`
	Description  string            `yaml:"description,omitempty"`
	Tags         []string          `yaml:"tags,omitempty"`
	Method       string            `yaml:"method"`
	Path         string            `yaml:"path"`
	Params       map[string]any    `yaml:"params,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	Body         map[string]any    `yaml:"body,omitempty"`
	ExpectStatus int               `yaml:"expectStatus"`
	Assert       []contract.Rule   `yaml:"assert,omitempty"`
	Only         bool              `yaml:"only,omitempty"`
	Skip         string            `yaml:"skip,omitempty"`
}

func (s *ContractSpec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s %s", strings.ToUpper(s.Method), s.Path)
}

// ConfigFilenames contains the file names searched when no path is given
var ConfigFilenames = []string{
	"hitcontract.yaml",
	"hitcontract.yml",
	".hitcontract.yaml",
	"contracts.yaml",
	"hitcontract.json",
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// Dir is the directory schema paths are resolved against.
func (c *Config) Dir() string {
	if c.Path == "" {
		return "."
	}
	return filepath.Dir(c.Path)
}

// LoadConfig loads the contract file at path, or searches the current
// directory when path is empty.
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindConfig returns the first known config file name present in dir.
func FindConfig(dir string) (string, bool) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if info, err := os.Stat(configPath); err == nil && !info.IsDir() {
			return configPath, true
		}
	}
	return "", false
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	path, ok := FindConfig(dir)
	if !ok {
		return nil, fmt.Errorf("no contract file found in %s (looked for %s)", dir, strings.Join(ConfigFilenames, ", "))
	}
	return loadConfigFromFile(path)
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading contract file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes a contract file. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoContracts
		}
		return nil, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

// ApplyEnvironment merges the named environment over the top-level
// settings. An empty name is a no-op.
func (c *Config) ApplyEnvironment(name string) error {
	if name == "" {
		return nil
	}
	e, ok := c.Environments[name]
	if !ok || e == nil {
		return fmt.Errorf("%w: %q (available: %s)", ErrUnknownEnvironment, name, strings.Join(c.EnvironmentNames(), ", "))
	}

	if e.BaseURL != "" {
		c.BaseURL = e.BaseURL
	}
	if e.TimeoutMs > 0 {
		c.TimeoutMs = e.TimeoutMs
	}
	if len(e.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		for k, v := range e.Headers {
			c.Headers[k] = v
		}
	}
	c.Params = env.MergeVariables(c.Params, e.Params)
	return nil
}

func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every contract without resolving templates. All problems
// are reported together.
func (c *Config) Validate() error {
	if len(c.Contracts) == 0 {
		return ErrNoContracts
	}

	var errs []error
	for i := range c.Contracts {
		spec := &c.Contracts[i]
		if _, err := spec.build(nil); err != nil {
			errs = append(errs, fmt.Errorf("contract %d (%s): %w", i+1, spec.DisplayName(), err))
			continue
		}
		for _, name := range contract.Placeholders(spec.Path) {
			if _, ok := spec.Params[name]; ok {
				continue
			}
			if _, ok := c.Params[name]; ok {
				continue
			}
			if !c.paramInAnyEnvironment(name) {
				errs = append(errs, fmt.Errorf("contract %d (%s): %w: %s", i+1, spec.DisplayName(), contract.ErrMissingParam, name))
			}
		}
	}
	return errors.Join(errs...)
}

// UnresolvedReferences lists template strings that resolver cannot
// resolve, as "location: value". Params of the file and of every
// environment count as defined; functions are not called.
func (c *Config) UnresolvedReferences(resolver *env.Resolver) []string {
	for k := range c.Params {
		resolver.SetVariable(k, true)
	}
	for _, e := range c.Environments {
		if e == nil {
			continue
		}
		for k := range e.Params {
			resolver.SetVariable(k, true)
		}
	}

	var problems []string
	check := func(where string, v any) {
		for _, s := range templateStrings(v) {
			if resolver.HasUnresolved(s) {
				problems = append(problems, fmt.Sprintf("%s: %s", where, s))
			}
		}
	}

	check("baseUrl", c.BaseURL)
	check("headers", c.Headers)
	for _, name := range c.EnvironmentNames() {
		if e := c.Environments[name]; e != nil {
			check("environment "+name+" baseUrl", e.BaseURL)
			check("environment "+name+" headers", e.Headers)
		}
	}
	for i := range c.Contracts {
		spec := &c.Contracts[i]
		where := fmt.Sprintf("contract %d (%s)", i+1, spec.DisplayName())
		check(where+" headers", spec.Headers)
		check(where+" body", spec.Body)
		for _, rule := range spec.Assert {
			rule.MapValues(func(v any) any {
				check(where+" "+rule.Kind.String(), v)
				return v
			})
		}
	}
	return problems
}

// templateStrings returns every string containing a {{...}} reference in v,
// sorted.
func templateStrings(v any) []string {
	var out []string
	var walk func(any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			if strings.Contains(val, "{{") {
				out = append(out, val)
			}
		case map[string]string:
			for _, item := range val {
				walk(item)
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
	sort.Strings(out)
	return out
}

func (c *Config) paramInAnyEnvironment(name string) bool {
	for _, e := range c.Environments {
		if e == nil {
			continue
		}
		if _, ok := e.Params[name]; ok {
			return true
		}
	}
	return false
}

// build turns the file form into a contract, resolving templates when resolver
// is non-nil.
func (s *ContractSpec) build(resolver *env.Resolver) (*contract.EndpointContract, error) {
	method, err := contract.ParseMethod(s.Method)
	if err != nil {
		return nil, err
	}

	resolve := func(v any) any { return v }
	headers := s.Headers
	if resolver != nil {
		resolve = resolver.ResolveValue
		headers = resolver.ResolveAll(s.Headers)
	}

	rules := make([]contract.Rule, len(s.Assert))
	for i, r := range s.Assert {
		rules[i] = r.MapValues(resolve)
	}

	opts := []contract.Option{
		contract.WithName(s.Name),
		contract.WithDescription(s.Description),
		contract.WithTags(s.Tags...),
		contract.WithAssertions(rules...),
		contract.WithOnly(s.Only),
		contract.WithSkip(s.Skip),
	}
	if len(s.Params) > 0 {
		opts = append(opts, contract.WithParams(resolve(s.Params).(map[string]any)))
	}
	if len(headers) > 0 {
		opts = append(opts, contract.WithHeaders(headers))
	}
	if s.Body != nil {
		opts = append(opts, contract.WithBody(resolve(s.Body).(map[string]any)))
	}

	return contract.New(method, s.Path, s.ExpectStatus, opts...)
}

// Suite is a config with every template resolved, ready to run.
type Suite struct {
	Source    string
	Dir       string
	BaseURL   string
	Timeout   time.Duration
	Headers   map[string]string
	Params    map[string]any
	Contracts []*contract.EndpointContract
}

// Build resolves templates and constructs contracts. Params are defined as
// resolver variables first, so contracts may reference them with {{name}}.
func (c *Config) Build(resolver *env.Resolver) (*Suite, error) {
	if len(c.Contracts) == 0 {
		return nil, ErrNoContracts
	}

	params := resolver.DefineVariables(c.Params)

	suite := &Suite{
		Source:    c.Path,
		Dir:       c.Dir(),
		BaseURL:   resolver.Resolve(c.BaseURL),
		Timeout:   c.Timeout(),
		Headers:   resolver.ResolveAll(c.Headers),
		Params:    params,
		Contracts: make([]*contract.EndpointContract, 0, len(c.Contracts)),
	}

	for i := range c.Contracts {
		spec := &c.Contracts[i]
		built, err := spec.build(resolver)
		if err != nil {
			return nil, fmt.Errorf("contract %d (%s): %w", i+1, spec.DisplayName(), err)
		}
		suite.Contracts = append(suite.Contracts, built)
	}
	return suite, nil
}

// SaveConfig writes the configuration as YAML.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
