package mail

import (
	"regexp"
	"strings"
)

var bracketedAddr = regexp.MustCompile(`<(.+?)>`)

// ExtractAddress returns the bare address from a From header value. A
// bracketed address wins; otherwise the trimmed raw string is returned.
func ExtractAddress(sender string) string {
	if m := bracketedAddr.FindStringSubmatch(sender); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(sender)
}

// ReplySubject prefixes subject with "Re: " unless it already carries a
// reply marker (case-insensitive).
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if strings.HasPrefix(strings.ToLower(trimmed), "re:") {
		return trimmed
	}
	return "Re: " + trimmed
}
