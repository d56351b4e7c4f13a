package extractor

import (
	"github.com/BishopFox/jsluice"
	"github.com/rs/zerolog"

	"github.com/aleister1102/waymirror/internal/urlhandler"
)

// JSAnalyzer mines JavaScript payloads for literal URL references using
// jsluice.
type JSAnalyzer struct {
	logger zerolog.Logger
}

// NewJSAnalyzer creates a new JavaScript analyzer.
func NewJSAnalyzer(logger zerolog.Logger) *JSAnalyzer {
	return &JSAnalyzer{
		logger: logger.With().Str("component", "JSAnalyzer").Logger(),
	}
}

// ExtractURLs extracts every resolvable URL literal from a script,
// resolved against the script's own URL.
func (jsa *JSAnalyzer) ExtractURLs(sourceURL string, content []byte) []string {
	analyzer := jsluice.NewAnalyzer(content)
	results := analyzer.GetURLs()

	jsa.logger.Debug().
		Str("source_url", sourceURL).
		Int("url_count", len(results)).
		Msg("JavaScript URL mining completed")

	var links []string
	for _, result := range results {
		if resolved, ok := urlhandler.ResolveReference(sourceURL, result.URL); ok {
			links = append(links, resolved)
		}
	}
	return links
}
