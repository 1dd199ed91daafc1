package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebLoaderConfig(t *testing.T) {
	config := WebConfig{
		BaseURL:        "https://example.com",
		MaxDepth:       5,
		RateLimit:      1.0,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	}

	l, err := NewWebLoader(config)
	require.NoError(t, err)
	assert.Equal(t, config.BaseURL, l.config.BaseURL)
	assert.Equal(t, config.MaxDepth, l.config.MaxDepth)
	assert.Equal(t, 10*time.Second, l.client.Timeout)
}

func TestWebLoaderTimeoutDefault(t *testing.T) {
	// Without a timeout a stalled server would hang Load forever.
	l, err := NewWebLoader(WebConfig{BaseURL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, l.client.Timeout)
}

func TestShouldProcessURL(t *testing.T) {
	config := WebConfig{
		BaseURL:           "https://example.com",
		IgnorePatterns:    []string{"/ignore/", "private"},
		AllowedExtensions: []string{".html", "/"},
	}

	l, err := NewWebLoader(config)
	require.NoError(t, err)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/docs/", true},
		{"https://example.com/page.html", true},
		{"https://example.com/ignore/page.html", false},
		{"https://other-domain.com/page.html", false},
		{"https://example.com/file.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			result := l.shouldProcessURL(tt.url)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
				<head><title>Test Page</title></head>
				<body>
					<main>
						<h1>Test Content</h1>
						<p>This is a test paragraph.</p>
						<a href="/page2.html">Link</a>
					</main>
				</body>
			</html>
		`))
	}))
	defer server.Close()

	config := WebConfig{
		BaseURL:   server.URL,
		MaxDepth:  1,
		RateLimit: 10,
	}

	l, err := NewWebLoader(config)
	require.NoError(t, err)

	docs, err := l.Load(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	doc := docs[0]
	assert.Equal(t, server.URL, doc.Source)
	assert.Equal(t, "Test Page", doc.Title)
	assert.Contains(t, doc.Content, "Test Content")
	assert.Contains(t, doc.Content, "This is a test paragraph")
	assert.NotEmpty(t, doc.ID)
}

func TestChunkSafeID(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://example.com/docs/intro.html", "example.com_docs_intro.html"},
		{"http://example.com/docs/", "example.com_docs"},
		{"https://example.com/a?b=c#d", "example.com_a_b=c_d"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, chunkSafeID(tt.url))
		})
	}
}
