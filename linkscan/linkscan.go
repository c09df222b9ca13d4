// Package linkscan extracts actionable links from delivered message
// bodies. HTML parts are preferred over plain text, and extracted URLs
// are ranked so that links containing an action keyword (verify,
// confirm, and so on) come first. Extraction is pure: the same parts
// always produce the same links.
package linkscan

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// defaultKeywords mark a URL as actionable. Order matters: the first
// keyword found in a URL becomes its MatchedKeyword.
var defaultKeywords = []string{"verify", "confirm", "activate", "shared", "token"}

// DefaultKeywords returns a copy of the default action keyword set.
func DefaultKeywords() []string {
	out := make([]string, len(defaultKeywords))
	copy(out, defaultKeywords)
	return out
}

// Part is one body part of a message, in document order.
type Part struct {
	ContentType string
	Content     string
}

// Link is one extracted URL.
type Link struct {
	// URL is the link target exactly as it appeared in the message.
	URL string `json:"url"`
	// MatchedKeyword is the action keyword that ranked this link,
	// empty for links that matched none.
	MatchedKeyword string `json:"matchedKeyword,omitempty"`
}

type config struct {
	keywords []string
}

// Option configures extraction.
type Option func(*config)

// WithKeywords replaces the action keyword set. Matching is
// case-insensitive. Passing no keywords keeps the defaults.
func WithKeywords(keywords ...string) Option {
	return func(c *config) {
		if len(keywords) == 0 {
			return
		}
		lowered := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				lowered = append(lowered, kw)
			}
		}
		if len(lowered) > 0 {
			c.keywords = lowered
		}
	}
}

// urlPattern matches absolute http(s) URLs embedded in plain text.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Extract returns the links found in parts, ranked. Links whose URL
// contains an action keyword come first, the rest follow; document
// order is preserved within each group. When no URL matches any
// keyword the result is empty, so callers can tell "message carried no
// actionable link" apart from "no message at all".
//
// HTML parts win over plain text: anchor targets are collected from
// every HTML part, and a plain-text scan of the remaining content runs
// only when the anchors yielded nothing.
func Extract(parts []Part, opts ...Option) []Link {
	cfg := config{keywords: defaultKeywords}
	for _, opt := range opts {
		opt(&cfg)
	}

	urls := htmlURLs(parts)
	if len(urls) == 0 {
		urls = textURLs(parts)
	}
	if len(urls) == 0 {
		return nil
	}

	var matched, unmatched []Link
	for _, u := range urls {
		if kw := matchKeyword(u, cfg.keywords); kw != "" {
			matched = append(matched, Link{URL: u, MatchedKeyword: kw})
		} else {
			unmatched = append(unmatched, Link{URL: u})
		}
	}
	if len(matched) == 0 {
		return nil
	}
	return append(matched, unmatched...)
}

func matchKeyword(url string, keywords []string) string {
	lowered := strings.ToLower(url)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return kw
		}
	}
	return ""
}

func htmlURLs(parts []Part) []string {
	var urls []string
	for _, part := range parts {
		if !isHTML(part.ContentType) {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(part.Content))
		if err != nil {
			continue
		}
		doc.Find("a[href], area[href]").Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}
			href = strings.TrimSpace(href)
			if isHTTPURL(href) {
				urls = append(urls, href)
			}
		})
	}
	return urls
}

func textURLs(parts []Part) []string {
	var urls []string
	for _, part := range parts {
		if !isScannableText(part.ContentType) {
			continue
		}
		for _, raw := range urlPattern.FindAllString(part.Content, -1) {
			if u := trimTrailingPunct(raw); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

// trimTrailingPunct strips punctuation that sentence context glues onto
// a URL, like the period in "visit https://example.com/verify."
func trimTrailingPunct(u string) string {
	return strings.TrimRight(u, ".,;:!?)]'\"")
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "html")
}

func isScannableText(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html")
}

func isHTTPURL(s string) bool {
	lowered := strings.ToLower(s)
	return strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://")
}
