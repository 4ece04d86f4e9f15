package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func testLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Attention Is All You Need</title>
    <summary>The dominant sequence transduction models are based on RNNs.</summary>
    <published>2017-06-12T17:57:34Z</published>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v5" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v5" rel="related" type="application/pdf"/>
    <category term="cs.CL"/>
    <category term="cs.LG"/>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"></feed>`

func TestArxivClient_FetchPaper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1706.03762", r.URL.Query().Get("id_list"))
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	c := NewArxivClient(time.Second, testLimiter(), zap.NewNop())
	c.SetBaseURL(server.URL)

	row, err := c.FetchPaper(context.Background(), "1706.03762")
	require.NoError(t, err)

	assert.Equal(t, "Attention Is All You Need", row["title"])
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, row["authors"])
	assert.Equal(t, []string{"cs.CL", "cs.LG"}, row["categories"])
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v5", row["pdf_link"])
	assert.Equal(t, "http://arxiv.org/abs/1706.03762v5", row["arxiv_url"])
	assert.NotEmpty(t, row["timestamp"])
}

func TestArxivClient_UnknownIDIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyFeed))
	}))
	defer server.Close()

	c := NewArxivClient(time.Second, testLimiter(), zap.NewNop())
	c.SetBaseURL(server.URL)

	_, err := c.FetchPaper(context.Background(), "0000.00000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArxivClient_BadStatusIsConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewArxivClient(time.Second, testLimiter(), zap.NewNop())
	c.SetBaseURL(server.URL)

	_, err := c.FetchPaper(context.Background(), "1706.03762")
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "arXiv API", connErr.Source)
}

func TestDuckDuckGoClient_Search(t *testing.T) {
	payload := `{
		"AbstractText": "Go is a programming language.",
		"RelatedTopics": [
			{"Text": "Go (programming language)", "FirstURL": "https://duckduckgo.com/go"},
			{"Topics": [
				{"Text": "Golang tooling", "FirstURL": "https://duckduckgo.com/golang"}
			]}
		]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		w.Write([]byte(payload))
	}))
	defer server.Close()

	c := NewDuckDuckGoClient(time.Second, testLimiter(), zap.NewNop())
	c.baseURL = server.URL

	result, err := c.Search(context.Background(), "golang", 5)
	require.NoError(t, err)

	assert.Equal(t, "golang", result.Record["query"])
	assert.JSONEq(t, payload, result.Record["raw_results"].(string))

	assert.Contains(t, result.Formatted, "Go is a programming language.")
	assert.Contains(t, result.Formatted, "[Go (programming language)](https://duckduckgo.com/go)")
	// Nested category topics are flattened into the list.
	assert.Contains(t, result.Formatted, "[Golang tooling](https://duckduckgo.com/golang)")
}

func TestDuckDuckGoClient_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	c := NewDuckDuckGoClient(time.Second, testLimiter(), zap.NewNop())
	c.baseURL = server.URL

	_, err := c.Search(context.Background(), "golang", 5)
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestFormatSearchResults_CapsTopics(t *testing.T) {
	parsed := &ddgResponse{
		RelatedTopics: []ddgTopic{
			{Text: "one", FirstURL: "https://a"},
			{Text: "two", FirstURL: "https://b"},
			{Text: "three", FirstURL: "https://c"},
		},
	}
	formatted := formatSearchResults("q", parsed, 2)
	assert.Contains(t, formatted, "one")
	assert.Contains(t, formatted, "two")
	assert.NotContains(t, formatted, "three")
}

func TestFormatSearchResults_NoAnswer(t *testing.T) {
	formatted := formatSearchResults("obscure", &ddgResponse{}, 5)
	assert.Contains(t, formatted, `No instant answer available for "obscure".`)
}

func TestCrawler_NonOKIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewCrawler(time.Second, testLimiter(), 0, 0, zap.NewNop())
	html, err := c.FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Empty(t, html)
}

func TestCrawler_FetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "teacher-bot/1.0", r.Header.Get("User-Agent"))
		w.Write([]byte("<html><body><p>hello</p></body></html>"))
	}))
	defer server.Close()

	c := NewCrawler(time.Second, testLimiter(), 0, 0, zap.NewNop())
	html, err := c.FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "<p>hello</p>")
}

func TestCrawler_ExtractTextStripsMarkup(t *testing.T) {
	c := NewCrawler(time.Second, testLimiter(), 0, 50, zap.NewNop())

	html := `<html><head><style>p { color: red }</style></head>
<body><script>alert("x")</script><p>Useful content here.</p></body></html>`
	text := c.ExtractText(html, "https://example.com")

	assert.Contains(t, text, "Useful content here.")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "<p>")
}

func TestCrawler_ExtractTextTruncates(t *testing.T) {
	c := NewCrawler(time.Second, testLimiter(), 0, 10, zap.NewNop())

	text := c.ExtractText("<p>"+strings.Repeat("a", 100)+"</p>", "https://example.com")
	assert.True(t, strings.HasSuffix(text, "..."))
	assert.LessOrEqual(t, len([]rune(text)), 13)
}

func TestCrawler_EmptyHTML(t *testing.T) {
	c := NewCrawler(time.Second, testLimiter(), 0, 0, zap.NewNop())
	assert.Empty(t, c.ExtractText("", "https://example.com"))
}
