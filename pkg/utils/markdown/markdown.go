// Package markdown renders user supplied video descriptions into sanitized HTML.
package markdown

import (
	"bytes"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

var (
	bfRenderer = blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.Safelink | blackfriday.NofollowLinks | blackfriday.HrefTargetBlank | blackfriday.Smartypants | blackfriday.SmartypantsDashes,
	})
	bfExtensions = blackfriday.NoIntraEmphasis | blackfriday.Autolink | blackfriday.Strikethrough | blackfriday.SpaceHeadings | blackfriday.NoEmptyLineBeforeBlock
	ugcPolicy    = bluemonday.UGCPolicy()
)

func render(source string) []byte {
	return blackfriday.Run([]byte(source),
		blackfriday.WithRenderer(bfRenderer),
		blackfriday.WithExtensions(bfExtensions),
	)
}

// HTML converts markdown into HTML that is safe to inject into a page.
func HTML(source string) template.HTML {
	if source == "" {
		return ""
	}
	return template.HTML(bytes.TrimSpace(ugcPolicy.SanitizeBytes(render(source))))
}

