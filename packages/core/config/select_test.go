package config

import (
	"testing"

	"github.com/abdul-hamid-achik/hitcontract/packages/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(contracts []*contract.EndpointContract) []string {
	out := make([]string, len(contracts))
	for i, c := range contracts {
		out[i] = c.DisplayName()
	}
	return out
}

func sampleContracts() []*contract.EndpointContract {
	return []*contract.EndpointContract{
		contract.MustNew(contract.POST, "/posts", 201, contract.WithName("create post"), contract.WithTags("write")),
		contract.MustNew(contract.GET, "/posts", 200, contract.WithName("list posts"), contract.WithTags("read", "smoke")),
		contract.MustNew(contract.GET, "/posts/{id}", 200, contract.WithName("get post"), contract.WithTags("read")),
		contract.MustNew(contract.DELETE, "/posts/29", 200, contract.WithName("delete post"), contract.WithSkip("flaky upstream")),
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		want    []string
		skipped int
	}{
		{"no filter", Filter{}, []string{"create post", "list posts", "get post"}, 1},
		{"exact name", Filter{Name: "get post"}, []string{"get post"}, 3},
		{"prefix", Filter{Name: "list*"}, []string{"list posts"}, 3},
		{"suffix", Filter{Name: "*post"}, []string{"create post", "get post"}, 2},
		{"contains", Filter{Name: "*post*"}, []string{"create post", "list posts", "get post"}, 1},
		{"tags", Filter{Tags: []string{"smoke", "write"}}, []string{"create post", "list posts"}, 2},
		{"name and tags", Filter{Name: "*post*", Tags: []string{"read"}}, []string{"list posts", "get post"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := Select(sampleContracts(), tt.filter)
			assert.Equal(t, tt.want, names(sel.Contracts))
			assert.Len(t, sel.Skipped, tt.skipped)
		})
	}
}

func TestSelect_SkipReason(t *testing.T) {
	sel := Select(sampleContracts(), Filter{})
	require.Len(t, sel.Skipped, 1)
	assert.Equal(t, "delete post", sel.Skipped[0].Contract.DisplayName())
	assert.Equal(t, "flaky upstream", sel.Skipped[0].Reason)
}

func TestSelect_Only(t *testing.T) {
	contracts := sampleContracts()
	contracts = append(contracts, contract.MustNew(contract.PUT, "/posts/1", 200, contract.WithName("update post"), contract.WithOnly(true)))

	sel := Select(contracts, Filter{})
	assert.Equal(t, []string{"update post"}, names(sel.Contracts))
	require.Len(t, sel.Skipped, 4)
	assert.Equal(t, "not marked only", sel.Skipped[0].Reason)
	assert.Equal(t, "flaky upstream", sel.Skipped[3].Reason)
}

func TestFilter_IsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{Name: "x"}.IsZero())
	assert.False(t, Filter{Tags: []string{"x"}}.IsZero())
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("anything", ""))
	assert.True(t, matchesPattern("anything", "*"))
	assert.True(t, matchesPattern("create post", "create*"))
	assert.False(t, matchesPattern("create post", "delete*"))
	assert.True(t, matchesPattern("create post", "*post"))
	assert.True(t, matchesPattern("create post", "*ate p*"))
	assert.False(t, matchesPattern("create post", "create"))
	assert.True(t, matchesPattern("get post", "get*post"))
	assert.True(t, matchesPattern("get post", "g*t*o*t"))
	assert.True(t, matchesPattern("get post", "get **post"))
	assert.False(t, matchesPattern("get post", "get*posts"))
	assert.False(t, matchesPattern("aa", "a*a*a"))
	assert.True(t, matchesPattern("a", "a*"))
}

func TestSelect_MiddleWildcard(t *testing.T) {
	getPost := contract.MustNew(contract.GET, "/posts/{id}", 200, contract.WithName("get post"))
	getPosts := contract.MustNew(contract.GET, "/posts", 200, contract.WithName("get all posts"))
	createPost := contract.MustNew(contract.POST, "/posts", 201, contract.WithName("create post"))

	sel := Select([]*contract.EndpointContract{getPost, getPosts, createPost}, Filter{Name: "get*post"})

	require.Len(t, sel.Contracts, 1)
	assert.Same(t, getPost, sel.Contracts[0])
	require.Len(t, sel.Skipped, 2)
	assert.Equal(t, "name does not match get*post", sel.Skipped[0].Reason)
}
