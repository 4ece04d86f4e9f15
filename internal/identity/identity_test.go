package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArxivID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare id", "1706.03762", "1706.03762"},
		{"bare id with version", "1706.03762v5", "1706.03762v5"},
		{"abs url", "https://arxiv.org/abs/1706.03762", "1706.03762"},
		{"pdf url", "https://arxiv.org/pdf/1706.03762.pdf", "1706.03762"},
		{"pdf url without extension", "https://arxiv.org/pdf/2104.05704", "2104.05704"},
		{"surrounding whitespace", "  1706.03762  ", "1706.03762"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ArxivID(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArxivID_Invalid(t *testing.T) {
	for _, input := range []string{"", "not an id at all", "https://example.com/abs/123"} {
		_, err := ArxivID(input)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "input %q", input)
	}
}

func TestURLKey(t *testing.T) {
	now := time.Unix(1700000000, 0)

	key := URLKey("https://pypi.org/project/ollama/", now)
	assert.Equal(t, "pypi_org_project_ollama__1700000000", key)

	// Scheme is stripped so http and https crawls of one page share a slug.
	other := URLKey("http://pypi.org/project/ollama/", now)
	assert.Equal(t, key, other)
}

func TestURLKey_DistinctPerFetch(t *testing.T) {
	first := URLKey("https://example.com", time.Unix(100, 0))
	second := URLKey("https://example.com", time.Unix(200, 0))
	assert.NotEqual(t, first, second)
}

func TestSearchKey_SlugTruncation(t *testing.T) {
	long := "a query that is really quite long and keeps going well past fifty characters"
	key := SearchKey(long, time.Unix(42, 0))
	assert.Equal(t, "a_query_that_is_really_quite_long_and_keeps_going__42", key)
}
