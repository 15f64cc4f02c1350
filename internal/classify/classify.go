// Package classify labels inbound mail threads against a closed taxonomy,
// using a language model for the judgment call and deterministic parsing for
// everything around it.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/acctools/cxflow/internal/gmailx"
)

// Classification is the parsed model verdict for one thread.
type Classification struct {
	Tag         string `json:"tag"`
	Description string `json:"description"`
	Subtag      string `json:"subtag"`
}

// Mailbox is the slice of the mail client the labeler needs.
type Mailbox interface {
	SearchThreads(ctx context.Context, query string) ([]*gmailx.Thread, error)
	GetOrCreateLabel(ctx context.Context, name string) (string, error)
	AddLabel(ctx context.Context, threadID, labelID string) error
}

// Model produces one completion per prompt.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// BuildPrompt renders the classification prompt for one message. The tag
// list is the model's entire vocabulary; it is told to copy values verbatim.
func BuildPrompt(taxonomy Taxonomy, subject, body string) string {
	var b strings.Builder
	b.WriteString("Brand context: Algae Cooking Club sells algae oil and healthy-cooking products. ")
	b.WriteString("Answer in the role of a customer-support specialist; senders may be customers, distributors, influencers, magazines, press, or prospects.\n\n")
	b.WriteString("I have an email with the following subject and body:\n")
	fmt.Fprintf(&b, "SUBJECT: %s\n", subject)
	fmt.Fprintf(&b, "BODY: %s\n\n", body)

	b.WriteString("Classify this email using one of the following tags and provide a brief description:\n")
	for _, t := range taxonomy.Tags {
		fmt.Fprintf(&b, "- Tag: %s | Description: %s\n", t.Tag, t.Description)
	}

	if len(taxonomy.Subtags) > 0 {
		b.WriteString("\nIf applicable, add a Subtag (only for Inquiry/Modification Request, and only when the message is about one of these):\n")
		for _, s := range taxonomy.Subtags {
			fmt.Fprintf(&b, "- Subtag: %s\n", s)
		}
	}

	b.WriteString("\nReturn only the result as valid JSON, like this:\n")
	b.WriteString("{\n  \"tag\": \"...\",\n  \"description\": \"...\",\n  \"subtag\": \"...\"\n}\n")
	b.WriteString("\nIMPORTANT: Use the exact tag values from the reference above, without the word Tag. ")
	b.WriteString("Do not invent new ones, and do not add or remove spaces or characters; match case exactly. ")
	b.WriteString("Always analyze the message body, since it reveals what the sender wants. ")
	b.WriteString("Remember that an Inquiry or Complaint always requires an action from the support specialist.\n")
	return b.String()
}

// stripFences removes markdown code fences the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ParseVerdict turns raw model output into a Classification. Preference
// order: fenced-or-bare JSON, then a "Tag:" line in plain text (no subtag),
// then Unclassified.
func ParseVerdict(raw string) Classification {
	cleaned := stripFences(raw)

	var c Classification
	if err := json.Unmarshal([]byte(cleaned), &c); err == nil && c.Tag != "" {
		return c
	}

	if idx := strings.Index(cleaned, "Tag:"); idx >= 0 {
		rest := cleaned[idx+len("Tag:"):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		if tag := strings.TrimSpace(rest); tag != "" {
			return Classification{Tag: tag}
		}
	}
	return Classification{Tag: Unclassified}
}

// Labeler runs the auto-labeling pass over unprocessed threads.
type Labeler struct {
	mail           Mailbox
	model          Model
	taxonomy       Taxonomy
	processedLabel string
	searchAfter    string
	log            *zap.SugaredLogger
}

// NewLabeler wires a Labeler. processedLabel marks threads as already
// classified and excludes them from the next run's search.
func NewLabeler(mail Mailbox, model Model, taxonomy Taxonomy, processedLabel, searchAfter string, log *zap.SugaredLogger) *Labeler {
	return &Labeler{
		mail:           mail,
		model:          model,
		taxonomy:       taxonomy,
		processedLabel: processedLabel,
		searchAfter:    searchAfter,
		log:            log,
	}
}

// Run classifies every thread not yet carrying the processed label. Model or
// label failures skip the thread so it is retried next run.
func (l *Labeler) Run(ctx context.Context) error {
	query := fmt.Sprintf("-label:%s", l.processedLabel)
	if l.searchAfter != "" {
		query = fmt.Sprintf("after:%s %s", l.searchAfter, query)
	}
	threads, err := l.mail.SearchThreads(ctx, query)
	if err != nil {
		return fmt.Errorf("search threads: %w", err)
	}
	processedID, err := l.mail.GetOrCreateLabel(ctx, l.processedLabel)
	if err != nil {
		return fmt.Errorf("processed label: %w", err)
	}

	var labeled int
	for _, thread := range threads {
		if len(thread.Messages) == 0 {
			continue
		}
		first := thread.Messages[0]
		verdict, err := l.classify(ctx, first.Subject, first.Body)
		if err != nil {
			l.log.Warnw("classification failed, skipping thread", "thread", thread.ID, "err", err)
			continue
		}
		if err := l.apply(ctx, thread.ID, verdict, processedID); err != nil {
			l.log.Warnw("labeling failed, skipping thread", "thread", thread.ID, "err", err)
			continue
		}
		labeled++
		l.log.Infow("thread labeled", "thread", thread.ID, "tag", verdict.Tag, "subtag", verdict.Subtag)
	}
	l.log.Infow("auto-label pass done", "threads", len(threads), "labeled", labeled)
	return nil
}

func (l *Labeler) classify(ctx context.Context, subject, body string) (Classification, error) {
	raw, err := l.model.Complete(ctx, BuildPrompt(l.taxonomy, subject, body))
	if err != nil {
		return Classification{}, err
	}
	return ParseVerdict(raw), nil
}

// apply adds the tag and subtag labels, then the processed marker. The
// marker goes on last so a partial failure leaves the thread eligible for
// retry.
func (l *Labeler) apply(ctx context.Context, threadID string, verdict Classification, processedID string) error {
	if verdict.Tag != "" && verdict.Tag != Unclassified {
		labelID, err := l.mail.GetOrCreateLabel(ctx, verdict.Tag)
		if err != nil {
			return err
		}
		if err := l.mail.AddLabel(ctx, threadID, labelID); err != nil {
			return err
		}
		if verdict.Subtag != "" {
			subID, err := l.mail.GetOrCreateLabel(ctx, verdict.Subtag)
			if err != nil {
				return err
			}
			if err := l.mail.AddLabel(ctx, threadID, subID); err != nil {
				return err
			}
		}
	}
	return l.mail.AddLabel(ctx, threadID, processedID)
}
