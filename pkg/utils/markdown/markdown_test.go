package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTML_Empty(t *testing.T) {
	require.Equal(t, "", string(HTML("")))
}

func TestHTML_Sanitizes(t *testing.T) {
	html := string(HTML("hello <script>alert(1)</script> **world**"))
	require.NotContains(t, strings.ToLower(html), "<script")
	require.Contains(t, html, "<strong>world</strong>")
}

func TestHTML_LinksOpenSafely(t *testing.T) {
	html := string(HTML("see https://example.com"))
	require.Contains(t, html, `href="https://example.com"`)
	require.Contains(t, html, "nofollow")
}
