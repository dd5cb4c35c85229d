package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/core/config"
	"github.com/abdul-hamid-achik/hitcontract/packages/core/env"
	"gopkg.in/yaml.v3"
)

// suiteOptions are the inputs shared by commands that load a contract file.
type suiteOptions struct {
	path    string
	envName string
	envFile string
	baseURL string
	params  []string
	filter  config.Filter
}

type loadedSuite struct {
	config    *config.Config
	suite     *config.Suite
	selection *config.Selection
}

// loadSuite reads the contract file, applies the environment and CLI
// overrides, resolves templates and selects the contracts to run.
func loadSuite(opts suiteOptions, logger *slog.Logger) (*loadedSuite, error) {
	overrides, err := parseParams(opts.params)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(opts.path)
	if err != nil {
		return nil, configError(err)
	}
	if err := cfg.ApplyEnvironment(opts.envName); err != nil {
		return nil, configError(err)
	}
	cfg.Params = env.MergeVariables(cfg.Params, overrides)

	resolver := env.NewResolver()
	resolver.SetWarnFunc(func(format string, args ...any) {
		logger.Warn(fmt.Sprintf(format, args...))
	})
	if opts.envFile != "" {
		vars, err := env.LoadDotEnv(opts.envFile)
		if err != nil {
			return nil, configError(err)
		}
		resolver.SetDotEnv(vars)
	}

	suite, err := cfg.Build(resolver)
	if err != nil {
		return nil, configError(err)
	}
	if opts.baseURL != "" {
		suite.BaseURL = resolver.Resolve(opts.baseURL)
	}

	logger.Debug("contract file loaded",
		"path", cfg.Path,
		"environment", opts.envName,
		"base_url", suite.BaseURL,
		"contracts", len(suite.Contracts))

	return &loadedSuite{
		config:    cfg,
		suite:     suite,
		selection: config.Select(suite.Contracts, opts.filter),
	}, nil
}

// parseParams parses repeated --param key=value flags. Values are read as
// YAML scalars, so 5 is a number and abc a string.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usageError("invalid --param %q (want key=value)", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		switch value.(type) {
		case nil, map[string]any, []any:
			value = raw
		}
		params[key] = value
	}
	return params, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
