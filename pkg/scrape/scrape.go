// Package scrape fetches web pages the way a browser would and distills
// them into a short structured summary.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anaskhan96/soup"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	// Some sites serve bots an empty shell, so identify as a browser.
	userAgent = "Mozilla/5.0"

	// DefaultTimeout bounds a fetch when the caller does not say
	// otherwise.
	DefaultTimeout = 5 * time.Second

	// maxBodyBytes caps how much of a page is read into memory.
	maxBodyBytes = 4 << 20
)

type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a fetcher whose requests retry transient failures
// and give up after timeout. A non-positive timeout means DefaultTimeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	client.HTTPClient.Timeout = timeout
	return &Fetcher{client: client.StandardClient()}
}

// Fetch GETs url and returns the page body. Responses outside the 2xx
// range are errors carrying the status code and an excerpt of the body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to construct request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body when getting %s: %w", url, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("got unexpected http status code %d when getting %s, response body: %s", resp.StatusCode, url, bodyExcerpt(body))
	}
	return string(body), nil
}

// FetchSummary fetches url and summarizes the page in one go.
func (f *Fetcher) FetchSummary(ctx context.Context, url string) (Summary, error) {
	html, err := f.Fetch(ctx, url)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(html), nil
}

func bodyExcerpt(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// Link is an anchor somewhere in the page.
type Link struct {
	Text string `json:"text,omitempty"`
	Href string `json:"href,omitempty"`
}

// Summary is the distilled structure of a page: the parts a human skims
// for.
type Summary struct {
	Title    string   `json:"title,omitempty"`
	Headings []string `json:"headings,omitempty"`
	Links    []Link   `json:"links,omitempty"`
	Images   int      `json:"images,omitempty"`
}

// Summarize parses html and extracts the title, the headings, the
// anchors and the image count. Malformed markup yields whatever could
// still be parsed, never an error.
func Summarize(html string) Summary {
	root := soup.HTMLParse(html)
	summary := Summary{}
	if title := root.Find("title"); title.Error == nil {
		summary.Title = strings.TrimSpace(title.Text())
	}
	for _, tag := range []string{"h1", "h2", "h3"} {
		for _, heading := range root.FindAll(tag) {
			// FullText, headings routinely wrap their text in anchors.
			if text := strings.TrimSpace(heading.FullText()); text != "" {
				summary.Headings = append(summary.Headings, text)
			}
		}
	}
	for _, anchor := range root.FindAll("a") {
		href, text := extractAnchor(anchor)
		if href == "" && text == "" {
			continue
		}
		summary.Links = append(summary.Links, Link{Text: text, Href: href})
	}
	summary.Images = len(root.FindAll("img"))
	return summary
}

func extractAnchor(anchor soup.Root) (href, text string) {
	if link, ok := anchor.Attrs()["href"]; ok {
		href = link
	}
	return href, strings.TrimSpace(anchor.Text())
}
