// Package gmailx provides the Gmail operations behind the cxflow pipelines:
// label-scoped thread search, thread feature extraction, draft replies and
// label bookkeeping, built on google.golang.org/api/gmail/v1.
package gmailx

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gm "google.golang.org/api/gmail/v1"
)

// searchPageSize matches the mailbox's maximum page size; queries that match
// more threads than this are drained across pages.
const searchPageSize = 500

// Client wraps the Gmail service with the label map loaded once per run.
type Client struct {
	svc *gm.Service

	// Label names keyed by ID, plus listing order for deterministic
	// "first matching label" semantics downstream.
	labelNames map[string]string
	labelIDs   map[string]string
	labelOrder []string
}

// New builds a Client and loads the user's label list.
func New(ctx context.Context, svc *gm.Service) (*Client, error) {
	c := &Client{
		svc:        svc,
		labelNames: make(map[string]string),
		labelIDs:   make(map[string]string),
	}
	if err := c.loadLabels(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) loadLabels(ctx context.Context) error {
	resp, err := c.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}
	for _, l := range resp.Labels {
		c.labelNames[l.Id] = l.Name
		c.labelIDs[l.Name] = l.Id
		c.labelOrder = append(c.labelOrder, l.Name)
	}
	return nil
}

// SearchThreads finds every thread matching a Gmail query, draining all
// pages, and returns them fully loaded in oldest-first order (the API lists
// newest-first).
func (c *Client) SearchThreads(ctx context.Context, query string) ([]*Thread, error) {
	var ids []string
	pageToken := ""
	for {
		call := c.svc.Users.Threads.List("me").Q(query).MaxResults(searchPageSize).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list threads: %w", err)
		}
		for _, t := range resp.Threads {
			ids = append(ids, t.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	threads := make([]*Thread, 0, len(ids))
	// Reverse so downstream processing sees oldest threads first.
	for i := len(ids) - 1; i >= 0; i-- {
		t, err := c.GetThread(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, nil
}

// GetThread fetches a single thread with full message content.
func (c *Client) GetThread(ctx context.Context, id string) (*Thread, error) {
	resp, err := c.svc.Users.Threads.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get thread %s: %w", id, err)
	}

	t := &Thread{ID: resp.Id}
	seen := make(map[string]bool)
	for _, msg := range resp.Messages {
		t.Messages = append(t.Messages, parseMessage(msg))
		for _, labelID := range msg.LabelIds {
			seen[labelID] = true
		}
	}

	// Emit label names in the mailbox's listing order so "first matching
	// label" parsing downstream is deterministic.
	for _, name := range c.labelOrder {
		if seen[c.labelIDs[name]] {
			t.Labels = append(t.Labels, name)
		}
	}
	return t, nil
}

// HasLabelWithPrefix rechecks whether the thread still bears a label starting
// with any of the prefixes. A fetch failure returns (true, err): the caller
// must treat the thread as still valid rather than delete on a transient error.
func (c *Client) HasLabelWithPrefix(ctx context.Context, threadID string, prefixes []string) (bool, error) {
	resp, err := c.svc.Users.Threads.Get("me", threadID).Format("minimal").Context(ctx).Do()
	if err != nil {
		return true, fmt.Errorf("recheck thread %s: %w", threadID, err)
	}
	for _, msg := range resp.Messages {
		for _, labelID := range msg.LabelIds {
			name := c.labelNames[labelID]
			for _, prefix := range prefixes {
				if strings.HasPrefix(name, prefix) {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// GetOrCreateLabel returns the ID of the named label, creating it if needed.
func (c *Client) GetOrCreateLabel(ctx context.Context, name string) (string, error) {
	if id, ok := c.labelIDs[name]; ok {
		return id, nil
	}
	label, err := c.svc.Users.Labels.Create("me", &gm.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create label %q: %w", name, err)
	}
	c.labelNames[label.Id] = name
	c.labelIDs[name] = label.Id
	c.labelOrder = append(c.labelOrder, name)
	return label.Id, nil
}

// AddLabel applies a label to every message of a thread.
func (c *Client) AddLabel(ctx context.Context, threadID, labelID string) error {
	_, err := c.svc.Users.Threads.Modify("me", threadID, &gm.ModifyThreadRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add label to thread %s: %w", threadID, err)
	}
	return nil
}

// Signature returns the primary send-as signature, or "" when none is set.
func (c *Client) Signature(ctx context.Context) (string, error) {
	resp, err := c.svc.Users.Settings.SendAs.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list send-as settings: %w", err)
	}
	for _, sa := range resp.SendAs {
		if sa.IsDefault {
			return sa.Signature, nil
		}
	}
	return "", nil
}

// CreateDraftReply writes a draft reply on the thread, addressed to the
// sender of the last inbound message, threaded via In-Reply-To/References.
func (c *Client) CreateDraftReply(ctx context.Context, thread *Thread, text, htmlBody string) error {
	if len(thread.Messages) == 0 {
		return fmt.Errorf("thread %s has no messages", thread.ID)
	}
	last := thread.Messages[len(thread.Messages)-1]

	to := last.ReplyTo
	if to == "" {
		to = last.From
	}
	subject := thread.Messages[0].Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	raw := buildReplyMIME(to, subject, last.HeaderMessageID, text, htmlBody)
	_, err := c.svc.Users.Drafts.Create("me", &gm.Draft{
		Message: &gm.Message{
			ThreadId: thread.ID,
			Raw:      base64.RawURLEncoding.EncodeToString([]byte(raw)),
		},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create draft on thread %s: %w", thread.ID, err)
	}
	return nil
}

// buildReplyMIME assembles a multipart/alternative reply message.
func buildReplyMIME(to, subject, inReplyTo, text, htmlBody string) string {
	const boundary = "cxflow-alt-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if inReplyTo != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", inReplyTo)
		fmt.Fprintf(&b, "References: %s\r\n", inReplyTo)
	}
	b.WriteString("MIME-Version: 1.0\r\n")

	if htmlBody == "" {
		b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
		b.WriteString(text)
		return b.String()
	}

	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s\r\n", boundary, text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s\r\n", boundary, htmlBody)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}
