package rewriter

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/net/html"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/urlhandler"
)

var rewriteAttrs = []string{"src", "href", "poster", "data-src", "data-href"}

var cssURLRegex = regexp.MustCompile(`(?i)url\(([^)]+)\)`)

// OfflineRewriter rewrites downloaded documents so references between
// archived files become relative local links, making the copy browsable
// without the archive.
type OfflineRewriter struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// NewOfflineRewriter creates a rewriter over the given filesystem.
func NewOfflineRewriter(fs afero.Fs, logger zerolog.Logger) *OfflineRewriter {
	return &OfflineRewriter{
		fs:     fs,
		logger: logger.With().Str("component", "OfflineRewriter").Logger(),
	}
}

// RewriteFile rewrites one downloaded file in place. urlToLocal maps every
// downloaded resource URL to its local relative path; references outside
// the map keep their original absolute form. Files that are neither HTML
// nor CSS, or that no longer exist, are left untouched.
func (rw *OfflineRewriter) RewriteFile(outputDir, localPath, pageURL, mime string, urlToLocal map[string]string) error {
	fullPath := filepath.Join(outputDir, localPath)
	exists, err := afero.Exists(rw.fs, fullPath)
	if err != nil || !exists {
		return nil
	}

	switch {
	case urlhandler.IsHTMLMime(mime):
		return rw.rewriteHTML(outputDir, fullPath, localPath, pageURL, urlToLocal)
	case urlhandler.IsCSSMime(mime):
		return rw.rewriteCSS(outputDir, fullPath, localPath, pageURL, urlToLocal)
	}
	return nil
}

func (rw *OfflineRewriter) rewriteHTML(outputDir, fullPath, localPath, pageURL string, urlToLocal map[string]string) error {
	body, err := afero.ReadFile(rw.fs, fullPath)
	if err != nil {
		return errorwrapper.WrapError(err, "reading "+fullPath)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		rw.logger.Debug().Str("path", localPath).Err(err).Msg("HTML parse failed, file left as downloaded")
		return nil
	}

	changed := rw.rewriteNode(doc, localPath, pageURL, urlToLocal)
	if !changed {
		return nil
	}

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return errorwrapper.WrapError(err, "rendering rewritten HTML for "+localPath)
	}
	if err := afero.WriteFile(rw.fs, fullPath, out.Bytes(), 0o644); err != nil {
		return errorwrapper.WrapError(err, "writing rewritten HTML to "+fullPath)
	}
	return nil
}

func (rw *OfflineRewriter) rewriteNode(node *html.Node, localPath, pageURL string, urlToLocal map[string]string) bool {
	changed := false
	if node.Type == html.ElementNode {
		for i := range node.Attr {
			attr := &node.Attr[i]
			switch {
			case isRewriteAttr(attr.Key):
				if local, ok := rw.localFor(pageURL, attr.Val, urlToLocal); ok {
					attr.Val = RelativeLink(localPath, local)
					changed = true
				}
			case attr.Key == "srcset":
				if rewritten, ok := rw.rewriteSrcset(localPath, pageURL, attr.Val, urlToLocal); ok {
					attr.Val = rewritten
					changed = true
				}
			}
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if rw.rewriteNode(child, localPath, pageURL, urlToLocal) {
			changed = true
		}
	}
	return changed
}

func (rw *OfflineRewriter) rewriteSrcset(localPath, pageURL, srcset string, urlToLocal map[string]string) (string, bool) {
	var parts []string
	anyChange := false
	for _, item := range strings.Split(srcset, ",") {
		chunk := strings.TrimSpace(item)
		if chunk == "" {
			continue
		}
		fields := strings.Fields(chunk)
		candidate := fields[0]
		descriptor := strings.Join(fields[1:], " ")

		if local, ok := rw.localFor(pageURL, candidate, urlToLocal); ok {
			anyChange = true
			replacement := RelativeLink(localPath, local)
			if descriptor != "" {
				replacement += " " + descriptor
			}
			parts = append(parts, replacement)
		} else {
			parts = append(parts, chunk)
		}
	}
	return strings.Join(parts, ", "), anyChange
}

func (rw *OfflineRewriter) rewriteCSS(outputDir, fullPath, localPath, pageURL string, urlToLocal map[string]string) error {
	body, err := afero.ReadFile(rw.fs, fullPath)
	if err != nil {
		return errorwrapper.WrapError(err, "reading "+fullPath)
	}

	text := string(body)
	rewritten := cssURLRegex.ReplaceAllStringFunc(text, func(match string) string {
		raw := cssURLRegex.FindStringSubmatch(match)[1]
		candidate := strings.Trim(strings.TrimSpace(raw), `"'`)
		local, ok := rw.localFor(pageURL, candidate, urlToLocal)
		if !ok {
			return match
		}
		return "url('" + RelativeLink(localPath, local) + "')"
	})

	if rewritten == text {
		return nil
	}
	if err := afero.WriteFile(rw.fs, fullPath, []byte(rewritten), 0o644); err != nil {
		return errorwrapper.WrapError(err, "writing rewritten CSS to "+fullPath)
	}
	return nil
}

// localFor resolves a document reference and looks up its downloaded
// local path.
func (rw *OfflineRewriter) localFor(pageURL, value string, urlToLocal map[string]string) (string, bool) {
	resolved, ok := urlhandler.ResolveReference(pageURL, value)
	if !ok {
		return "", false
	}
	local, ok := urlToLocal[resolved]
	return local, ok
}

func isRewriteAttr(key string) bool {
	for _, attr := range rewriteAttrs {
		if key == attr {
			return true
		}
	}
	return false
}

// RelativeLink computes the relative link from one local file to another,
// both given as slash-separated paths relative to the archive root.
func RelativeLink(fromLocal, targetLocal string) string {
	fromDir := filepath.Dir(filepath.FromSlash(fromLocal))
	rel, err := filepath.Rel(fromDir, filepath.FromSlash(targetLocal))
	if err != nil {
		return targetLocal
	}
	return filepath.ToSlash(rel)
}
