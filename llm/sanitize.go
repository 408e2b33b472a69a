package llm

import (
	"regexp"
	"strings"
)

// Patterns stripped from message content before transmission. Note text comes
// from arbitrary user input and can carry markup-injection payloads that would
// otherwise flow into prompts and logs.
var (
	scriptTagPattern    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	javascriptPattern   = regexp.MustCompile(`(?i)javascript:`)
	dataHTMLPattern     = regexp.MustCompile(`(?i)data:text/html`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+\s*=`)
	controlCharPattern  = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// SanitizeContent removes injection vectors and control characters from a
// single message body and collapses runs of whitespace.
func SanitizeContent(content string) string {
	if content == "" {
		return ""
	}

	s := scriptTagPattern.ReplaceAllString(content, "[script removed]")
	s = javascriptPattern.ReplaceAllString(s, "[javascript removed]")
	s = dataHTMLPattern.ReplaceAllString(s, "[data url removed]")
	s = eventHandlerPattern.ReplaceAllString(s, "[event handler removed]")

	s = whitespacePattern.ReplaceAllString(s, " ")
	s = controlCharPattern.ReplaceAllString(s, "")

	return strings.TrimSpace(s)
}

// sanitizeMessages returns a copy of messages with every content sanitized.
// The caller's slice is never mutated.
func sanitizeMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, msg := range messages {
		out[i] = Message{
			Role:    msg.Role,
			Content: SanitizeContent(msg.Content),
		}
	}
	return out
}
