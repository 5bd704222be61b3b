// ABOUTME: HTML to text converters used when a message only carries markup
// ABOUTME: Plain text via html2text, or Markdown via html-to-markdown with a text fallback

package content

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/k3a/html2text"
)

// Converter turns HTML markup into readable text.
type Converter interface {
	Convert(html string) string
}

// TextConverter renders HTML as plain text.
type TextConverter struct{}

// Convert strips markup and decodes entities.
func (TextConverter) Convert(html string) string {
	return html2text.HTML2TextWithOptions(html, html2text.WithUnixLineBreaks())
}

// MarkdownConverter renders HTML as Markdown so links and emphasis survive.
type MarkdownConverter struct{}

// Convert converts html to Markdown. If conversion fails, plain text is returned instead.
func (MarkdownConverter) Convert(html string) string {
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return TextConverter{}.Convert(html)
	}
	return strings.TrimSpace(markdown)
}

// NewConverter returns the converter for a text format name: "text" (default) or "markdown".
func NewConverter(format string) (Converter, error) {
	switch format {
	case "", "text":
		return TextConverter{}, nil
	case "markdown":
		return MarkdownConverter{}, nil
	default:
		return nil, fmt.Errorf("unknown text format: %q", format)
	}
}
