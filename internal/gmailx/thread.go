package gmailx

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	gm "google.golang.org/api/gmail/v1"
)

// bodyExcerptLimit caps how much of a message body the pipelines look at.
const bodyExcerptLimit = 1024

// Message is one message in a thread, with the fields the pipelines need.
type Message struct {
	ID        string
	From      string
	ReplyTo   string
	Subject   string
	Body      string
	Date      time.Time
	HasImages bool

	// HeaderMessageID is the RFC 822 Message-ID, kept for reply threading.
	HeaderMessageID string
}

// Thread is a mailbox conversation with its labels and ordered messages.
type Thread struct {
	ID       string
	Labels   []string
	Messages []Message
}

// FirstMessageDate returns the timestamp of the oldest message.
func (t *Thread) FirstMessageDate() time.Time {
	if len(t.Messages) == 0 {
		return time.Time{}
	}
	return t.Messages[0].Date
}

// LastMessageDate returns the timestamp of the newest message.
func (t *Thread) LastMessageDate() time.Time {
	if len(t.Messages) == 0 {
		return time.Time{}
	}
	return t.Messages[len(t.Messages)-1].Date
}

// MessageDetails is what the classification and drafting pipelines derive
// from a thread's first message. Never persisted; computed fresh each run.
type MessageDetails struct {
	From      string
	Subject   string
	Body      string
	HasImages bool
}

// FirstMessageDetails extracts sender email, subject, a truncated body and
// the image-attachment flag from the first message of the thread.
func (t *Thread) FirstMessageDetails() (MessageDetails, bool) {
	if len(t.Messages) == 0 {
		return MessageDetails{}, false
	}
	first := t.Messages[0]
	body := first.Body
	if len(body) > bodyExcerptLimit {
		body = body[:bodyExcerptLimit]
	}
	return MessageDetails{
		From:      ExtractSenderEmail(first.From),
		Subject:   first.Subject,
		Body:      body,
		HasImages: first.HasImages,
	}, true
}

var angleAddr = regexp.MustCompile(`<(.+)>`)

// ExtractSenderEmail pulls the bare address out of a "Name <addr>" header,
// returning the header unchanged when no angle-bracket form is present.
func ExtractSenderEmail(from string) string {
	if m := angleAddr.FindStringSubmatch(from); m != nil {
		return m[1]
	}
	return from
}

// parseMessage converts a Gmail API message into our Message.
func parseMessage(msg *gm.Message) Message {
	headers := headerMap(msg.Payload.Headers)
	return Message{
		ID:              msg.Id,
		From:            headers["From"],
		ReplyTo:         headers["Reply-To"],
		Subject:         headers["Subject"],
		Body:            extractBody(msg.Payload),
		Date:            time.UnixMilli(msg.InternalDate),
		HasImages:       hasImageAttachment(msg.Payload),
		HeaderMessageID: headers["Message-ID"],
	}
}

// extractBody gets the plain text body from a message payload, walking
// multipart messages recursively and preferring text/plain over text/html.
func extractBody(payload *gm.MessagePart) string {
	if payload.Body != nil && payload.Body.Data != "" {
		if decoded, err := decodeBase64URL(payload.Body.Data); err == nil {
			return decoded
		}
	}

	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
		if len(part.Parts) > 0 {
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}

	// Fall back to HTML when no plain part exists.
	for _, part := range payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "" {
			if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
				return decoded
			}
		}
	}

	return ""
}

// hasImageAttachment reports whether any part of the payload is an image file.
func hasImageAttachment(payload *gm.MessagePart) bool {
	var scan func(parts []*gm.MessagePart) bool
	scan = func(parts []*gm.MessagePart) bool {
		for _, part := range parts {
			if part.Filename != "" && strings.HasPrefix(part.MimeType, "image/") {
				return true
			}
			if len(part.Parts) > 0 && scan(part.Parts) {
				return true
			}
		}
		return false
	}
	return scan(payload.Parts)
}

// headerMap converts Gmail API headers into a simple key-value map.
func headerMap(headers []*gm.MessagePartHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}

// decodeBase64URL decodes Gmail's base64url-encoded content.
func decodeBase64URL(data string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
