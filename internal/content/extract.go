// ABOUTME: Content extraction from hierarchical message payloads
// ABOUTME: Picks the best text rendition, finds attachments, and pulls out the first URL

package content

import (
	"regexp"
	"strings"

	"github.com/harper/maillog/internal/mail"
)

const (
	mimePlain = "text/plain"
	mimeHTML  = "text/html"
)

var (
	// Stops at Unicode whitespace too, so an html2text &nbsp; ends the link.
	urlPattern      = regexp.MustCompile(`(?i)https?://[^\s\p{Z}\x{0B}\x{1C}-\x{1F}\x{85}]+`)
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
)

// imageExtensions are filename suffixes treated as images regardless of MIME type.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic"}

// Attachment describes a payload node that references separately stored data.
type Attachment struct {
	Filename     string
	AttachmentID string
	MimeType     string
}

// IsImage reports whether the attachment looks like an image by MIME type or extension.
func (a Attachment) IsImage() bool {
	if strings.HasPrefix(strings.ToLower(a.MimeType), "image/") {
		return true
	}
	name := strings.ToLower(a.Filename)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// ExtractText returns the best plain-text rendition of a payload.
// It prefers the node's own text/plain data, then its own text/html data,
// then a direct text/plain child, then a direct text/html child, and finally
// recurses into nested multiparts, returning the first non-blank result.
func ExtractText(p *mail.Part, conv Converter) string {
	if p == nil {
		return ""
	}

	if p.MimeType == mimePlain && len(p.Body.Data) > 0 {
		return decode(p.Body.Data)
	}
	if p.MimeType == mimeHTML && len(p.Body.Data) > 0 {
		return conv.Convert(decode(p.Body.Data))
	}

	for _, child := range p.Parts {
		if child.MimeType == mimePlain && len(child.Body.Data) > 0 {
			return decode(child.Body.Data)
		}
	}
	for _, child := range p.Parts {
		if child.MimeType == mimeHTML && len(child.Body.Data) > 0 {
			return conv.Convert(decode(child.Body.Data))
		}
	}

	for _, child := range p.Parts {
		if len(child.Parts) == 0 {
			continue
		}
		if text := ExtractText(child, conv); strings.TrimSpace(text) != "" {
			return text
		}
	}

	return ""
}

// ExtractFirstURL removes the first http(s) URL from text and returns the
// remaining text and the URL. Runs of three or more newlines left behind are
// collapsed to a single blank line. url is empty when text has no URL.
func ExtractFirstURL(text string) (remaining, url string) {
	loc := urlPattern.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), ""
	}
	url = text[loc[0]:loc[1]]
	remaining = strings.TrimSpace(text[:loc[0]] + text[loc[1]:])
	remaining = strings.TrimSpace(blankRunPattern.ReplaceAllString(remaining, "\n\n"))
	return remaining, url
}

// FindAttachments walks the payload depth-first and returns every node that
// has both a filename and an attachment id, in traversal order.
func FindAttachments(p *mail.Part) []Attachment {
	var out []Attachment
	var walk func(*mail.Part)
	walk = func(n *mail.Part) {
		if n == nil {
			return
		}
		if n.Filename != "" && n.Body.AttachmentID != "" {
			out = append(out, Attachment{
				Filename:     n.Filename,
				AttachmentID: n.Body.AttachmentID,
				MimeType:     n.MimeType,
			})
		}
		for _, child := range n.Parts {
			walk(child)
		}
	}
	walk(p)
	return out
}

// FirstImage returns the first attachment that looks like an image.
func FirstImage(atts []Attachment) (Attachment, bool) {
	for _, a := range atts {
		if a.IsImage() {
			return a, true
		}
	}
	return Attachment{}, false
}

// decode converts body bytes to text, replacing invalid UTF-8 with U+FFFD.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
