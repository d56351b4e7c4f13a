package urlhandler

import (
	"net/url"
	"strings"
)

// IsHTMLMime reports whether a mime type denotes an HTML-like document.
func IsHTMLMime(mime string) bool {
	return strings.Contains(mime, "text/html") || strings.Contains(mime, "application/xhtml")
}

// IsCSSMime reports whether a mime type denotes a stylesheet.
func IsCSSMime(mime string) bool {
	return strings.Contains(mime, "text/css")
}

// IsJSMime reports whether a mime type denotes JavaScript.
func IsJSMime(mime string) bool {
	return strings.Contains(mime, "javascript") || strings.Contains(mime, "ecmascript")
}

var assetExtensions = []string{
	".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg",
	".woff", ".woff2", ".ttf", ".ico", ".mp4", ".webm", ".pdf", ".zip",
}

var pageExtensions = []string{".html", ".htm", ".php", ".asp", ".aspx"}

// LooksLikePage guesses whether a resource path serves a browsable page as
// opposed to an asset. Mime wins over extension; a trailing slash counts as
// a page.
func LooksLikePage(urlPath, mime string) bool {
	lower := strings.ToLower(urlPath)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	if IsHTMLMime(mime) {
		return true
	}
	for _, ext := range pageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return strings.HasSuffix(lower, "/")
}

// ExtensionOfURL extracts the lowercased file extension of a URL's path,
// or "(none)" when the final segment has no usable extension.
func ExtensionOfURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "(none)"
	}
	base := parsed.Path
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	dot := strings.LastIndex(base, ".")
	if dot < 0 {
		return "(none)"
	}
	ext := strings.ToLower(base[dot+1:])
	if ext == "" || len(ext) > 8 {
		return "(none)"
	}
	return "." + ext
}

// FolderOfPath reduces a URL path to its containing folder, with a
// trailing slash.
func FolderOfPath(urlPath string) string {
	clean := urlPath
	if clean == "" || clean == "/" {
		return "/"
	}
	if strings.HasSuffix(clean, "/") {
		return clean
	}
	if !strings.Contains(clean[1:], "/") {
		return "/"
	}
	return clean[:strings.LastIndex(clean, "/")] + "/"
}
