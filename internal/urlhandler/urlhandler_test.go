package urlhandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTarget(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"bare domain gains https", "example.com", "https://example.com", false},
		{"http preserved", "http://example.com/page", "http://example.com/page", false},
		{"host lowercased", "https://EXAMPLE.com/Page", "https://example.com/Page", false},
		{"fragment stripped", "https://example.com/page#section", "https://example.com/page", false},
		{"query kept", "https://example.com/page?a=1", "https://example.com/page?a=1", false},
		{"surrounding whitespace", "  example.com/x  ", "https://example.com/x", false},
		{"empty input", "", "", true},
		{"whitespace only", "   ", "", true},
		{"no host", "https:///path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizeTarget(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNormalizeTargetIdempotent(t *testing.T) {
	first, err := NormalizeTarget("https://www.Example.com/page?q=1#frag")
	require.NoError(t, err)

	second, err := NormalizeTarget(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHostKeyCollapsesSpellings(t *testing.T) {
	spellings := []string{"example.com", "http://example.com", "https://www.example.com/"}
	var keys []string
	for _, raw := range spellings {
		normalized, err := NormalizeTarget(raw)
		require.NoError(t, err)
		keys = append(keys, HostKey(HostOf(normalized)))
	}
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[1], keys[2])
	assert.Equal(t, "example.com", keys[0])
}

func TestBuildVariants(t *testing.T) {
	variants := BuildVariants("https://example.com/page?q=1")
	assert.Equal(t, []string{
		"https://example.com/page?q=1",
		"https://www.example.com/page?q=1",
		"http://example.com/page?q=1",
		"http://www.example.com/page?q=1",
	}, variants)
}

func TestBuildVariantsWWWInput(t *testing.T) {
	variants := BuildVariants("https://www.example.com/")
	assert.Equal(t, []string{
		"https://www.example.com/",
		"https://example.com/",
		"http://www.example.com/",
		"http://example.com/",
	}, variants)
}

func TestBuildVariantsSubdomainNotExpanded(t *testing.T) {
	// Multi-label hosts get no www counterpart.
	variants := BuildVariants("https://blog.example.com/")
	assert.Equal(t, []string{
		"https://blog.example.com/",
		"http://blog.example.com/",
	}, variants)
}

func TestBuildVariantsStable(t *testing.T) {
	first := BuildVariants("https://example.com/page")
	second := BuildVariants("https://example.com/page")
	assert.Equal(t, first, second)
}

func TestWildcardAndRootURL(t *testing.T) {
	assert.Equal(t, "https://example.com/*", WildcardURL("https://example.com/deep/page"))
	assert.Equal(t, "https://example.com/", RootURL("https://example.com/deep/page?q=1"))
}

func TestResolveReference(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		value    string
		expected string
		ok       bool
	}{
		{"relative path", "https://example.com/dir/page.html", "style.css", "https://example.com/dir/style.css", true},
		{"root relative", "https://example.com/dir/page.html", "/img/logo.png", "https://example.com/img/logo.png", true},
		{"absolute", "https://example.com/", "https://cdn.example.com/a.js", "https://cdn.example.com/a.js", true},
		{"protocol relative", "https://example.com/", "//example.com/a.js", "https://example.com/a.js", true},
		{"fragment dropped", "https://example.com/", "/page#x", "https://example.com/page", true},
		{"javascript scheme", "https://example.com/", "javascript:void(0)", "", false},
		{"mailto scheme", "https://example.com/", "mailto:a@b.c", "", false},
		{"data uri", "https://example.com/", "data:image/png;base64,xyz", "", false},
		{"bare fragment", "https://example.com/", "#top", "", false},
		{"empty", "https://example.com/", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, ok := ResolveReference(tt.page, tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, resolved)
			}
		})
	}
}

func TestLocalPathForURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		mime     string
		expected string
	}{
		{"root becomes index", "https://example.com/", "text/html", "index.html"},
		{"directory gains index", "https://example.com/blog/", "text/html", "blog/index.html"},
		{"extensionless html gains ext", "https://example.com/about", "text/html", "about.html"},
		{"asset keeps extension", "https://example.com/css/site.css", "text/css", "css/site.css"},
		{"extensionless asset untouched", "https://example.com/api/data", "application/json", "api/data"},
		{"unsafe chars sanitized", "https://example.com/a b/c%20d.png", "image/png", "a_b/c_20d.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LocalPathForURL(tt.url, tt.mime))
		})
	}
}

func TestLocalPathForURLQueryHash(t *testing.T) {
	withQuery := LocalPathForURL("https://example.com/page.php?id=1", "text/html")
	otherQuery := LocalPathForURL("https://example.com/page.php?id=2", "text/html")
	noQuery := LocalPathForURL("https://example.com/page.php", "text/html")

	assert.NotEqual(t, withQuery, otherQuery)
	assert.NotEqual(t, withQuery, noQuery)
	assert.Contains(t, withQuery, "__q_")
	assert.Equal(t, "page.php", noQuery)

	// Deterministic for the same query.
	assert.Equal(t, withQuery, LocalPathForURL("https://example.com/page.php?id=1", "text/html"))
}

func TestLooksLikePage(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		mime     string
		expected bool
	}{
		{"html mime", "/about", "text/html", true},
		{"trailing slash", "/blog/", "unknown", true},
		{"php extension", "/index.php", "unknown", true},
		{"css never a page", "/site.css", "text/html", false},
		{"image never a page", "/logo.png", "unknown", false},
		{"plain file", "/data", "application/json", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LooksLikePage(tt.path, tt.mime))
		})
	}
}

func TestExtensionOfURL(t *testing.T) {
	assert.Equal(t, ".css", ExtensionOfURL("https://example.com/a/site.css"))
	assert.Equal(t, ".js", ExtensionOfURL("https://example.com/app.JS"))
	assert.Equal(t, "(none)", ExtensionOfURL("https://example.com/about"))
	assert.Equal(t, "(none)", ExtensionOfURL("https://example.com/file.verylongext"))
}

func TestFolderOfPath(t *testing.T) {
	assert.Equal(t, "/", FolderOfPath("/"))
	assert.Equal(t, "/", FolderOfPath("/file.txt"))
	assert.Equal(t, "/a/", FolderOfPath("/a/file.txt"))
	assert.Equal(t, "/a/b/", FolderOfPath("/a/b/"))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "hello_world", SanitizeName("hello world"))
	assert.Equal(t, "file", SanitizeName("???"))
	assert.Equal(t, "a.b-c_d", SanitizeName("a.b-c d"))
}
