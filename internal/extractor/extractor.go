package extractor

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/aleister1102/waymirror/internal/urlhandler"
)

// attrsToScan are the attributes that may reference downloadable resources.
var attrsToScan = []string{"src", "href", "poster", "data-src", "data-href"}

var cssURLRegex = regexp.MustCompile(`(?i)url\(([^)]+)\)`)

// LinkExtractor discovers same-archive resource references inside
// downloaded payloads. HTML and CSS payloads are parsed; JavaScript is
// mined for literal URLs.
type LinkExtractor struct {
	logger zerolog.Logger
	js     *JSAnalyzer
}

// NewLinkExtractor creates a link extractor.
func NewLinkExtractor(logger zerolog.Logger) *LinkExtractor {
	return &LinkExtractor{
		logger: logger.With().Str("component", "LinkExtractor").Logger(),
		js:     NewJSAnalyzer(logger),
	}
}

// DiscoverLinks extracts every resolvable resource reference from a
// payload, resolved against the page URL, deduplicated in discovery
// order. Non-parseable payloads produce no links rather than an error.
func (le *LinkExtractor) DiscoverLinks(baseURL string, body []byte, mime string) []string {
	var links []string
	switch {
	case urlhandler.IsHTMLMime(mime):
		links = le.extractFromHTML(baseURL, body)
	case urlhandler.IsCSSMime(mime):
		links = ExtractCSSReferences(baseURL, DecodeText(body))
	case urlhandler.IsJSMime(mime):
		links = le.js.ExtractURLs(baseURL, body)
	}

	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, link := range links {
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}
	return out
}

func (le *LinkExtractor) extractFromHTML(baseURL string, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		le.logger.Debug().Str("url", baseURL).Err(err).Msg("HTML parse failed, no links extracted")
		return nil
	}

	var links []string
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range attrsToScan {
			value, exists := s.Attr(attr)
			if !exists {
				continue
			}
			if resolved, ok := urlhandler.ResolveReference(baseURL, value); ok {
				links = append(links, resolved)
			}
		}

		if srcset, exists := s.Attr("srcset"); exists {
			for _, candidate := range ParseSrcset(srcset) {
				if resolved, ok := urlhandler.ResolveReference(baseURL, candidate); ok {
					links = append(links, resolved)
				}
			}
		}
	})
	return links
}

// ParseSrcset splits a srcset attribute into its candidate URLs, dropping
// the width/density descriptors.
func ParseSrcset(srcset string) []string {
	var out []string
	for _, item := range strings.Split(srcset, ",") {
		chunk := strings.TrimSpace(item)
		if chunk == "" {
			continue
		}
		out = append(out, strings.Fields(chunk)[0])
	}
	return out
}

// ExtractCSSReferences finds url(...) references in stylesheet text,
// resolved against the sheet's URL.
func ExtractCSSReferences(baseURL, cssText string) []string {
	var links []string
	for _, match := range cssURLRegex.FindAllStringSubmatch(cssText, -1) {
		candidate := strings.Trim(strings.TrimSpace(match[1]), `"'`)
		if resolved, ok := urlhandler.ResolveReference(baseURL, candidate); ok {
			links = append(links, resolved)
		}
	}
	return links
}

// DecodeText decodes a payload to a string, tolerating non-UTF8 bytes.
func DecodeText(body []byte) string {
	return string(body)
}
