package urlhandler

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var unsafeNameRegex = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName reduces arbitrary text to a filesystem-safe name.
func SanitizeName(text string) string {
	value := unsafeNameRegex.ReplaceAllString(strings.TrimSpace(text), "_")
	value = strings.Trim(value, "._")
	if value == "" {
		return "file"
	}
	return value
}

// LocalPathForURL derives the deterministic on-disk relative path for a
// resource URL. Path segments are sanitized, directory URLs gain an
// index.html, extensionless HTML responses gain a .html extension, and a
// query string is folded into an 8-hex sha1 suffix so distinct queries map
// to distinct files.
func LocalPathForURL(rawURL, mime string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return SanitizeName(rawURL)
	}

	urlPath := parsed.Path
	if urlPath == "" {
		urlPath = "/"
	}

	var parts []string
	for _, segment := range strings.Split(urlPath, "/") {
		if segment == "" {
			continue
		}
		parts = append(parts, SanitizeName(segment))
	}

	if len(parts) == 0 {
		parts = []string{"index.html"}
	} else if strings.HasSuffix(urlPath, "/") {
		parts = append(parts, "index.html")
	}

	filename := parts[len(parts)-1]
	if !strings.Contains(filename, ".") && IsHTMLMime(mime) {
		parts[len(parts)-1] = filename + ".html"
	}

	if parsed.RawQuery != "" {
		last := parts[len(parts)-1]
		ext := path.Ext(last)
		stem := strings.TrimSuffix(last, ext)
		sum := sha1.Sum([]byte(parsed.RawQuery))
		parts[len(parts)-1] = stem + "__q_" + hex.EncodeToString(sum[:])[:8] + ext
	}

	return strings.Join(parts, "/")
}
