package urlhandler

import (
	"net/url"
	"strings"

	"github.com/aleister1102/waymirror/internal/errorwrapper"
)

// NormalizeTarget canonicalizes raw user input into a target URL:
// https scheme is assumed when missing, the host is lowercased, the
// fragment is dropped and the query is kept. Inputs with no parseable
// host fail with ErrInvalidInput.
func NormalizeTarget(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errorwrapper.WrapError(errorwrapper.ErrInvalidInput, "URL is empty")
	}

	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", errorwrapper.WrapError(errorwrapper.ErrInvalidInput, "could not parse URL '"+trimmed+"'")
	}
	if parsed.Host == "" {
		return "", errorwrapper.WrapError(errorwrapper.ErrInvalidInput, "URL has no host: '"+trimmed+"'")
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	return parsed.String(), nil
}

// CleanURL strips the fragment from a URL, keeping scheme, host, path and
// query. Unparseable input is returned unchanged.
func CleanURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	parsed.Fragment = ""
	return parsed.String()
}

// HostKey derives the caching/deletion identity of a host: lowercased with
// any leading "www." stripped, so variant spellings collapse to one key.
func HostKey(host string) string {
	key := strings.ToLower(strings.TrimSpace(host))
	key = strings.TrimPrefix(key, "www.")
	return key
}

// BuildVariants expands a normalized target URL into the ordered list of
// scheme and host spellings to probe: {https, http} x {given host,
// www/non-www form}, deduplicated preserving first-seen order. The order is
// significant: the first variant wins ties downstream.
func BuildVariants(normalizedURL string) []string {
	parsed, err := url.Parse(normalizedURL)
	if err != nil {
		return []string{normalizedURL}
	}

	host := strings.ToLower(parsed.Host)
	path := parsed.Path
	if path == "" {
		path = "/"
	}

	hostVariants := []string{host}
	if strings.HasPrefix(host, "www.") {
		if trimmed := host[4:]; trimmed != "" {
			hostVariants = append(hostVariants, trimmed)
		}
	} else if strings.Count(host, ".") == 1 {
		hostVariants = append(hostVariants, "www."+host)
	}

	var out []string
	seen := make(map[string]struct{})
	for _, scheme := range []string{"https", "http"} {
		for _, h := range hostVariants {
			candidate := url.URL{Scheme: scheme, Host: h, Path: path, RawQuery: parsed.RawQuery}
			cleaned := CleanURL(candidate.String())
			if _, ok := seen[cleaned]; ok {
				continue
			}
			seen[cleaned] = struct{}{}
			out = append(out, cleaned)
		}
	}
	return out
}

// RootURL reduces a URL to its bare root path, keeping scheme and host.
func RootURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	root := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/"}
	return root.String()
}

// WildcardURL turns a variant URL into the host-wide wildcard form used for
// CDX inventory queries.
func WildcardURL(rootURL string) string {
	parsed, err := url.Parse(rootURL)
	if err != nil {
		return rootURL
	}
	return parsed.Scheme + "://" + parsed.Host + "/*"
}

// HostOf returns the host (with port, if any) of a URL, or "".
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

// PathOf returns the path of a URL, defaulting to "/".
func PathOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	if parsed.Path == "" {
		return "/"
	}
	return parsed.Path
}

// IsAllowedHost reports whether a URL's host belongs to the allowed set.
func IsAllowedHost(allowedHosts map[string]bool, rawURL string) bool {
	return allowedHosts[HostOf(rawURL)]
}

// badRefSchemes are reference prefixes that can never resolve to a
// downloadable resource.
var badRefSchemes = []string{"javascript:", "mailto:", "tel:", "data:", "#"}

// ResolveReference resolves a reference found inside a document against the
// page URL it came from. References with non-HTTP schemes, empty values or
// unparseable forms are rejected. The resolved URL is returned cleaned.
func ResolveReference(pageURL, value string) (string, bool) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		return "", false
	}
	lowered := strings.ToLower(candidate)
	for _, prefix := range badRefSchemes {
		if strings.HasPrefix(lowered, prefix) {
			return "", false
		}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return CleanURL(resolved.String()), true
}
