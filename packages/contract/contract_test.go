package contract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{"GET", GET, false},
		{"post", POST, false},
		{" Put ", PUT, false},
		{"delete", DELETE, false},
		{"PATCH", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := ParseMethod(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMethod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	t.Run("valid contract", func(t *testing.T) {
		c, err := New(GET, "/posts", 200, WithAssertions(NonEmpty(), IsArray()))
		require.NoError(t, err)
		assert.Equal(t, "GET /posts", c.DisplayName())
		assert.Len(t, c.Assertions, 2)
	})

	t.Run("invalid method", func(t *testing.T) {
		_, err := New("PATCH", "/posts", 200)
		assert.ErrorIs(t, err, ErrInvalidMethod)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := New(GET, "  ", 200)
		assert.ErrorIs(t, err, ErrEmptyPath)
	})

	t.Run("status out of range", func(t *testing.T) {
		_, err := New(GET, "/posts", 42)
		assert.ErrorIs(t, err, ErrInvalidStatus)
		_, err = New(GET, "/posts", 600)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("invalid rule", func(t *testing.T) {
		_, err := New(GET, "/posts", 200, WithAssertions(HasKeys()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "assertion 1")
	})
}

func TestWithBody_CopiesInput(t *testing.T) {
	body := map[string]any{"title": "t", "meta": map[string]any{"a": 1}}
	c := MustNew(POST, "/posts", 201, WithBody(body))

	body["title"] = "changed"
	body["meta"].(map[string]any)["a"] = 2

	assert.Equal(t, "t", c.Body["title"])
	assert.Equal(t, 1, c.Body["meta"].(map[string]any)["a"])
	assert.True(t, c.HasBody())
}

func TestMustNew_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustNew(GET, "", 200)
	})
}

func TestExpandPath(t *testing.T) {
	t.Run("substitutes params", func(t *testing.T) {
		path, err := ExpandPath("/posts/{id}/comments/{cid}", map[string]any{"id": 29, "cid": "a b"})
		require.NoError(t, err)
		assert.Equal(t, "/posts/29/comments/a%20b", path)
	})

	t.Run("no placeholders", func(t *testing.T) {
		path, err := ExpandPath("/posts", nil)
		require.NoError(t, err)
		assert.Equal(t, "/posts", path)
	})

	t.Run("missing param", func(t *testing.T) {
		_, err := ExpandPath("/posts/{id}", map[string]any{"other": 1})
		assert.True(t, errors.Is(err, ErrMissingParam))
		assert.Contains(t, err.Error(), "id")
	})
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"id", "cid"}, Placeholders("/posts/{id}/comments/{cid}"))
	assert.Empty(t, Placeholders("/posts"))
}

func TestEffectiveParams_ContractWins(t *testing.T) {
	c := MustNew(PUT, "/posts/{id}", 200, WithParams(map[string]any{"id": 29}))
	params := c.EffectiveParams(map[string]any{"id": 7, "postId": 3})
	assert.Equal(t, 29, params["id"])
	assert.Equal(t, 3, params["postId"])
}

func TestRule_UnmarshalYAML(t *testing.T) {
	input := `
- nonEmpty
- isArray
- hasKeys: [userId, title, body, id]
- fieldEquals: {key: userId, value: 5}
- deepIncludes: {title: t, body: b}
- schema: ./post.schema.json
`
	var rules []Rule
	require.NoError(t, yaml.Unmarshal([]byte(input), &rules))
	require.Len(t, rules, 6)

	assert.Equal(t, RuleNonEmpty, rules[0].Kind)
	assert.Equal(t, RuleIsArray, rules[1].Kind)
	assert.Equal(t, []string{"userId", "title", "body", "id"}, rules[2].Keys)
	assert.Equal(t, "userId", rules[3].Key)
	assert.Equal(t, 5, rules[3].Value)
	assert.Equal(t, map[string]any{"title": "t", "body": "b"}, rules[4].Subset)
	assert.Equal(t, "./post.schema.json", rules[5].SchemaPath)
}

func TestRule_UnmarshalYAML_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown scalar", "- isObject"},
		{"unknown mapping", "- hasValues: [a]"},
		{"two keys", "- {hasKeys: [a], isArray: true}"},
		{"bad hasKeys", "- hasKeys: {a: 1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rules []Rule
			assert.Error(t, yaml.Unmarshal([]byte(tt.input), &rules))
		})
	}
}

func TestRule_String(t *testing.T) {
	assert.Equal(t, "nonEmpty", NonEmpty().String())
	assert.Equal(t, "hasKeys [a, b]", HasKeys("a", "b").String())
	assert.Equal(t, "fieldEquals userId == 5", FieldEquals("userId", 5).String())
	assert.Equal(t, "schema s.json", MatchesSchema("s.json").String())
}

func TestRule_MapValues(t *testing.T) {
	upper := func(v any) any {
		if s, ok := v.(string); ok && s == "{{x}}" {
			return 17
		}
		return v
	}

	r := FieldEquals("userId", "{{x}}").MapValues(upper)
	assert.Equal(t, 17, r.Value)

	orig := DeepIncludes(map[string]any{"a": "{{x}}"})
	mapped := orig.MapValues(func(v any) any {
		return map[string]any{"a": 17}
	})
	assert.Equal(t, 17, mapped.Subset["a"])
	assert.Equal(t, "{{x}}", orig.Subset["a"])
}

func TestRule_MarshalYAML(t *testing.T) {
	rules := []Rule{
		NonEmpty(),
		HasKeys("id", "title"),
		FieldEquals("userId", 5),
		DeepIncludes(map[string]any{"title": "t"}),
		MatchesSchema("post.schema.json"),
	}

	data, err := yaml.Marshal(rules)
	require.NoError(t, err)

	var decoded []Rule
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, rules, decoded)
}
