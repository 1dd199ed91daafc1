package loader

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/ahagan/strata/internal/models"
)

type WebConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

// WebLoader walks a documentation site breadth-first from BaseURL, staying
// on the same host and below MaxDepth, and turns each page into a Document.
type WebLoader struct {
	config   WebConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
}

func NewWebLoader(config WebConfig) (*WebLoader, error) {
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}

	return &WebLoader{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

func (l *WebLoader) Load(ctx context.Context) ([]models.Document, error) {
	var documents []models.Document
	err := l.loadRecursive(ctx, l.config.BaseURL, 0, &documents)
	return documents, err
}

func (l *WebLoader) loadRecursive(ctx context.Context, urlStr string, depth int, documents *[]models.Document) error {
	if depth > l.config.MaxDepth || l.visited[urlStr] {
		return nil
	}

	if !l.shouldProcessURL(urlStr) {
		return nil
	}

	l.visited[urlStr] = true
	if l.config.OnProgress != nil {
		l.config.OnProgress(urlStr)
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	content := l.extractMainContent(doc)
	title := doc.Find("title").Text()

	document := models.Document{
		ID:      chunkSafeID(urlStr),
		Source:  urlStr,
		Title:   title,
		Content: content,
		Metadata: map[string]interface{}{
			"depth":        depth,
			"time":         time.Now(),
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
		},
	}
	*documents = append(*documents, document)

	// Find and follow links
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, exists := selection.Attr("href")
		if !exists {
			return
		}

		absoluteURL, err := url.Parse(href)
		if err != nil {
			log.Printf("Error parsing URL: %v", err)
			return
		}

		if !absoluteURL.IsAbs() {
			base, err := url.Parse(urlStr)
			if err != nil {
				log.Printf("Error parsing base URL: %v", err)
				return
			}
			absoluteURL = base.ResolveReference(absoluteURL)
		}

		if err := l.loadRecursive(ctx, absoluteURL.String(), depth+1, documents); err != nil {
			log.Printf("Error loading URL: %v", err)
		}
	})

	return nil
}

func (l *WebLoader) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	// Stay on the starting host
	if parsedURL.Host != l.baseHost {
		return false
	}

	// Check extensions
	ext := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range l.config.AllowedExtensions {
		if strings.HasSuffix(ext, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	// Check ignore patterns
	for _, pattern := range l.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func (l *WebLoader) extractMainContent(doc *goquery.Document) string {
	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if content == "" {
		content = doc.Find("body").Text()
	}

	return l.cleanContent(content)
}

func (l *WebLoader) cleanContent(content string) string {
	// Remove extra whitespace
	content = strings.Join(strings.Fields(content), " ")

	// Remove common noise
	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

// chunkSafeID derives a stable document ID from a URL, safe to suffix with
// a chunk index when stored.
func chunkSafeID(urlStr string) string {
	id := strings.TrimPrefix(urlStr, "https://")
	id = strings.TrimPrefix(id, "http://")
	replacer := strings.NewReplacer("/", "_", "?", "_", "&", "_", "#", "_", " ", "_")
	return replacer.Replace(strings.TrimSuffix(id, "/"))
}
