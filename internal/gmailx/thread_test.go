package gmailx

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	gm "google.golang.org/api/gmail/v1"
)

func TestExtractSenderEmail(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"Jordan Vega <jordan@example.com>", "jordan@example.com"},
		{"jordan@example.com", "jordan@example.com"},
		{"\"Vega, Jordan\" <j.vega@example.com>", "j.vega@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExtractSenderEmail(tt.from); got != tt.want {
			t.Errorf("ExtractSenderEmail(%q) = %q, want %q", tt.from, got, tt.want)
		}
	}
}

func TestFirstMessageDetailsTruncatesBody(t *testing.T) {
	long := strings.Repeat("x", 5000)
	th := &Thread{
		ID: "t1",
		Messages: []Message{{
			From:    "Customer <cust@example.com>",
			Subject: "Where is my order?",
			Body:    long,
		}},
	}

	details, ok := th.FirstMessageDetails()
	if !ok {
		t.Fatal("expected details for non-empty thread")
	}
	if len(details.Body) != 1024 {
		t.Fatalf("body excerpt length = %d, want 1024", len(details.Body))
	}
	if details.From != "cust@example.com" {
		t.Fatalf("From = %q", details.From)
	}

	if _, ok := (&Thread{}).FirstMessageDetails(); ok {
		t.Fatal("empty thread should yield no details")
	}
}

func TestExtractBodyPrefersPlainText(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	payload := &gm.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gm.MessagePart{
			{MimeType: "text/html", Body: &gm.MessagePartBody{Data: enc("<p>hello</p>")}},
			{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: enc("hello")}},
		},
	}
	if got := extractBody(payload); got != "hello" {
		t.Fatalf("extractBody = %q, want plain-text part", got)
	}

	// HTML-only payloads fall back to the HTML part.
	htmlOnly := &gm.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gm.MessagePart{
			{MimeType: "text/html", Body: &gm.MessagePartBody{Data: enc("<p>hello</p>")}},
		},
	}
	if got := extractBody(htmlOnly); got != "<p>hello</p>" {
		t.Fatalf("extractBody html fallback = %q", got)
	}
}

func TestHasImageAttachment(t *testing.T) {
	payload := &gm.MessagePart{
		Parts: []*gm.MessagePart{
			{MimeType: "text/plain", Body: &gm.MessagePartBody{}},
			{MimeType: "multipart/mixed", Parts: []*gm.MessagePart{
				{Filename: "leak.jpg", MimeType: "image/jpeg"},
			}},
		},
	}
	if !hasImageAttachment(payload) {
		t.Fatal("expected nested image attachment to be detected")
	}

	noImage := &gm.MessagePart{
		Parts: []*gm.MessagePart{
			{Filename: "invoice.pdf", MimeType: "application/pdf"},
		},
	}
	if hasImageAttachment(noImage) {
		t.Fatal("pdf attachment should not count as image")
	}
}

func TestThreadDateAccessors(t *testing.T) {
	first := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	last := time.Date(2025, 3, 11, 15, 30, 0, 0, time.UTC)
	th := &Thread{Messages: []Message{{Date: first}, {Date: last}}}

	if !th.FirstMessageDate().Equal(first) {
		t.Fatalf("FirstMessageDate = %v", th.FirstMessageDate())
	}
	if !th.LastMessageDate().Equal(last) {
		t.Fatalf("LastMessageDate = %v", th.LastMessageDate())
	}
}

func TestBuildReplyMIME(t *testing.T) {
	raw := buildReplyMIME("cust@example.com", "Re: Broken bottle", "<abc@mail>", "plain", "<p>plain</p>")
	for _, want := range []string{
		"To: cust@example.com",
		"Subject: Re: Broken bottle",
		"In-Reply-To: <abc@mail>",
		"References: <abc@mail>",
		"multipart/alternative",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("reply MIME missing %q", want)
		}
	}

	plain := buildReplyMIME("cust@example.com", "Re: Hi", "", "plain", "")
	if strings.Contains(plain, "multipart") {
		t.Error("text-only reply should not be multipart")
	}
}
