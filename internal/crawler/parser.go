package crawler

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Parser extracts information from HTML content.
//
// Design decision: We use goquery rather than walking x/net/html nodes by
// hand because:
//  1. It tolerates the malformed HTML common on the open web
//  2. Selector-based extraction stays readable as extraction rules grow
//  3. It resolves to the same underlying x/net/html parser
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving
	// relative links.
	baseURL *url.URL
}

// ParseResult contains the information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links contains all discovered absolute URLs from href attributes.
	Links []string

	// InternalLinks are links on the same host as the page.
	InternalLinks []string

	// ExternalLinks are links to other hosts.
	ExternalLinks []string

	// Text is the visible text content with scripts and styles removed.
	Text string
}

// NewParser creates a Parser for a page at the given URL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &Parser{baseURL: u}, nil
}

// Parse extracts title, links, and text from HTML content in one pass.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(content)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	result := &ParseResult{}
	result.Title = strings.TrimSpace(doc.Find("title").First().Text())

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		link := p.resolveURL(href)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		result.Links = append(result.Links, link)
		p.classifyLink(link, result)
	})

	// Strip non-content elements before taking the text.
	doc.Find("script, style, noscript").Remove()
	result.Text = normalizeWhitespace(doc.Find("body").Text())

	return result, nil
}

// resolveURL turns an href into an absolute http(s) URL, or "" when the
// href is unusable (fragments, javascript:, mailto:, malformed).
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// classifyLink sorts a link into the internal or external bucket.
func (p *Parser) classifyLink(link string, result *ParseResult) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}
	if strings.EqualFold(u.Host, p.baseURL.Host) {
		result.InternalLinks = append(result.InternalLinks, link)
	} else {
		result.ExternalLinks = append(result.ExternalLinks, link)
	}
}

// normalizeWhitespace collapses runs of whitespace to single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
