package mail

import (
	"bytes"
	"io"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/emersion/go-message/mail"

	// Register charset decoders (windows-1252, iso-8859-*, koi8-r, etc.)
	_ "github.com/emersion/go-message/charset"
)

// extractBody returns the plain-text body of a raw RFC 5322 message. An
// HTML-only message is converted to markdown; an unparsable one is
// returned as-is.
func extractBody(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}
		data, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(data)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(data)
		}
	}

	if textBody != "" {
		return strings.TrimSpace(textBody)
	}
	if htmlBody != "" {
		md, err := htmltomarkdown.ConvertString(htmlBody)
		if err != nil {
			return strings.TrimSpace(htmlBody)
		}
		return strings.TrimSpace(md)
	}
	return ""
}
