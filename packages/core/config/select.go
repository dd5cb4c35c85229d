package config

import (
	"strings"

	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
)

// Filter narrows a run to a subset of contracts.
type Filter struct {
	// Name is matched against the display name. '*' matches any run of
	// characters.
	Name string
	// Tags keeps contracts carrying at least one of the given tags.
	Tags []string
}

func (f Filter) IsZero() bool {
	return f.Name == "" && len(f.Tags) == 0
}

// Selection is the outcome of applying a Filter, in declaration order.
type Selection struct {
	Contracts []*contract.EndpointContract
	Skipped   []contract.Skipped
}

// Select splits contracts into those to run and those to report as
// skipped. When any contract is marked only, every other contract is
// skipped.
func Select(contracts []*contract.EndpointContract, f Filter) *Selection {
	hasOnly := false
	for _, c := range contracts {
		if c.Only {
			hasOnly = true
			break
		}
	}

	sel := &Selection{}
	for _, c := range contracts {
		if reason := skipReason(c, f, hasOnly); reason != "" {
			sel.Skipped = append(sel.Skipped, contract.Skipped{Contract: c, Reason: reason})
			continue
		}
		sel.Contracts = append(sel.Contracts, c)
	}
	return sel
}

func skipReason(c *contract.EndpointContract, f Filter, hasOnly bool) string {
	if c.Skip != "" {
		return c.Skip
	}
	if hasOnly && !c.Only {
		return "not marked only"
	}
	if f.IsZero() {
		return ""
	}
	if f.Name != "" && !matchesPattern(c.DisplayName(), f.Name) {
		return "name does not match " + f.Name
	}
	if len(f.Tags) > 0 && !hasAnyTag(c.Tags, f.Tags) {
		return "no tag in " + strings.Join(f.Tags, ", ")
	}
	return ""
}

// matchesPattern reports whether name matches pattern, where each '*'
// matches any run of characters, including none.
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return name == pattern
	}
	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	rest := name[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
	}
	return strings.HasSuffix(rest, parts[len(parts)-1])
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
