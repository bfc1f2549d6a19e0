package variables

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	vars := map[string]string{
		"name": "Kim",
		"age":  "31",
		"이름":   "김철수",
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"dollar syntax", "Hello ${name}", "Hello Kim"},
		{"brace syntax", "Hello {{name}}", "Hello Kim"},
		{"padded brace", "Hello {{ name }}", "Hello Kim"},
		{"mixed", "${name} is {{age}}", "Kim is 31"},
		{"unicode name", "${이름}님", "김철수님"},
		{"unknown left literal", "${missing} and {{gone}}", "${missing} and {{gone}}"},
		{"no placeholders", "plain text", "plain text"},
		{"empty", "", ""},
		{"bare dollar untouched", "$name costs $5", "$name costs $5"},
		{"repeated", "${name}${name}", "KimKim"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.input, vars))
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	vars := map[string]string{"a": "alpha", "b": "beta"}
	inputs := []string{
		"${a}-{{b}}",
		"${unknown} {{a}}",
		"{{ a }}{{b}}${a}",
		"nothing here",
		"${}{{}}",
	}

	for _, s := range inputs {
		once := Resolve(s, vars)
		assert.Equal(t, once, Resolve(once, vars), "resolving twice should equal resolving once for %q", s)
	}
}

func TestResolveDoesNotReexpandValues(t *testing.T) {
	vars := map[string]string{"a": "${b}", "b": "x"}
	assert.Equal(t, "${b}", Resolve("${a}", vars))
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Names("{{a}} ${b} ${a}"))
	assert.Empty(t, Names("none"))
	assert.True(t, HasPlaceholder("x ${y}"))
	assert.False(t, HasPlaceholder("x $y"))
}

func TestMergeDoesNotMutate(t *testing.T) {
	base := map[string]string{"a": "1", "b": "2"}
	merged := Merge(base, map[string]string{"b": "3"}, map[string]string{"c": "4"})

	assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "4"}, merged)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, base)
}

func TestParseAssignments(t *testing.T) {
	vars, err := ParseAssignments([]string{"user=admin", "empty=", "eq=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"user": "admin", "empty": "", "eq": "a=b"}, vars)

	_, err = ParseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseAssignments([]string{"bad name=x"})
	assert.Error(t, err)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.env")
	second := filepath.Join(dir, "b.env")
	require.NoError(t, os.WriteFile(first, []byte("USER=root\nHOST=vm1\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("HOST=vm2\n"), 0o644))

	vars, err := LoadEnvFiles(first, "", second)
	require.NoError(t, err)
	assert.Equal(t, "root", vars["USER"])
	assert.Equal(t, "vm2", vars["HOST"], "later file wins")

	_, err = LoadEnvFiles(filepath.Join(dir, "missing.env"))
	assert.Error(t, err)
}
