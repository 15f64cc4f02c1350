// Package reply drafts template-based answers to classified customer mail.
// For each triggered thread it resolves the template set for the thread's
// classification, lets the model pick one template from the closed set,
// personalizes it with store data, and leaves a Gmail draft on the thread.
package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/acctools/cxflow/internal/classify"
	"github.com/acctools/cxflow/internal/gmailx"
	"github.com/acctools/cxflow/internal/notion"
	"github.com/acctools/cxflow/internal/shopify"
)

// ErrInvalidModelChoice reports a model answer that names no known template.
var ErrInvalidModelChoice = errors.New("model choice matches no template")

// Mailbox is the slice of the mail client the pipeline needs.
type Mailbox interface {
	SearchThreads(ctx context.Context, query string) ([]*gmailx.Thread, error)
	GetOrCreateLabel(ctx context.Context, name string) (string, error)
	AddLabel(ctx context.Context, threadID, labelID string) error
	Signature(ctx context.Context) (string, error)
	CreateDraftReply(ctx context.Context, thread *gmailx.Thread, text, htmlBody string) error
}

// TemplateStore resolves classification labels to their template sets.
type TemplateStore interface {
	ConfiguredLabels(ctx context.Context) ([]string, error)
	TemplatesForLabel(ctx context.Context, label string) (notion.Templates, error)
}

// Model produces one completion per prompt.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Shop is the slice of the store client the pipeline needs.
type Shop interface {
	CustomerByEmail(ctx context.Context, email string) (*shopify.Customer, error)
	LatestOrder(ctx context.Context, customerID int64) (*shopify.Order, error)
	Locations(ctx context.Context) ([]shopify.Location, error)
	EnrichOrder(ctx context.Context, order *shopify.Order) error
}

// ResolveChoice maps a raw model answer to the chosen template text. The
// answer must be a "context::responseKey" identifier from the template set;
// surrounding whitespace and quotes are tolerated, nothing else is.
func ResolveChoice(choice string, templates notion.Templates) (string, error) {
	cleaned := strings.Trim(strings.TrimSpace(choice), `"'`)
	contextName, responseKey, ok := strings.Cut(cleaned, "::")
	if !ok {
		return "", fmt.Errorf("%q: %w", choice, ErrInvalidModelChoice)
	}
	row, ok := templates[contextName]
	if !ok {
		return "", fmt.Errorf("%q: %w", choice, ErrInvalidModelChoice)
	}
	text, ok := row[responseKey]
	if !ok {
		return "", fmt.Errorf("%q: %w", choice, ErrInvalidModelChoice)
	}
	return text, nil
}

// Pipeline drafts replies for threads carrying the trigger label but not yet
// the processed label.
type Pipeline struct {
	mail      Mailbox
	store     TemplateStore
	model     Model
	shop      Shop
	taxonomy  classify.Taxonomy
	trigger   string
	processed string
	log       *zap.SugaredLogger
}

// NewPipeline wires a Pipeline. trigger and processed are Gmail label names.
func NewPipeline(mail Mailbox, store TemplateStore, model Model, shop Shop, taxonomy classify.Taxonomy, trigger, processed string, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		mail:      mail,
		store:     store,
		model:     model,
		shop:      shop,
		taxonomy:  taxonomy,
		trigger:   trigger,
		processed: processed,
		log:       log,
	}
}

// classificationLabel returns the first thread label that belongs to the
// taxonomy, or "" when none does.
func (p *Pipeline) classificationLabel(thread *gmailx.Thread) string {
	known := make(map[string]bool, len(p.taxonomy.Tags))
	for _, t := range p.taxonomy.Tags {
		known[t.Tag] = true
	}
	for _, label := range thread.Labels {
		if known[label] {
			return label
		}
	}
	return ""
}

// Run processes every eligible thread. Per-thread failures are logged and
// skipped; the thread keeps its unprocessed state so the next run retries it.
func (p *Pipeline) Run(ctx context.Context) error {
	signature, err := p.mail.Signature(ctx)
	if err != nil {
		p.log.Warnw("signature unavailable, drafting without one", "err", err)
		signature = ""
	}

	configured, err := p.store.ConfiguredLabels(ctx)
	if err != nil {
		return fmt.Errorf("configured labels: %w", err)
	}
	if len(configured) == 0 {
		p.log.Info("no labels configured in the template store")
		return nil
	}
	configuredSet := make(map[string]bool, len(configured))
	for _, l := range configured {
		configuredSet[l] = true
	}

	locations, err := p.shop.Locations(ctx)
	if err != nil {
		p.log.Warnw("locations unavailable, warehouse-return rule disabled", "err", err)
	}

	query := fmt.Sprintf("label:%s -label:%s", p.trigger, p.processed)
	threads, err := p.mail.SearchThreads(ctx, query)
	if err != nil {
		return fmt.Errorf("search threads: %w", err)
	}
	if len(threads) == 0 {
		p.log.Info("no new threads to process")
		return nil
	}

	processedID, err := p.mail.GetOrCreateLabel(ctx, p.processed)
	if err != nil {
		return fmt.Errorf("processed label: %w", err)
	}

	var drafted int
	for _, thread := range threads {
		if err := p.processThread(ctx, thread, configuredSet, locations, signature, processedID); err != nil {
			p.log.Warnw("thread skipped", "thread", thread.ID, "err", err)
			continue
		}
		drafted++
	}
	p.log.Infow("draft pass done", "threads", len(threads), "drafted", drafted)
	return nil
}

func (p *Pipeline) processThread(ctx context.Context, thread *gmailx.Thread, configured map[string]bool, locations []shopify.Location, signature, processedID string) error {
	label := p.classificationLabel(thread)
	if label == "" {
		return fmt.Errorf("no classification label on thread")
	}
	if !configured[label] {
		return fmt.Errorf("label %q has no template database", label)
	}

	templates, err := p.store.TemplatesForLabel(ctx, label)
	if err != nil {
		return err
	}

	details, ok := thread.FirstMessageDetails()
	if !ok {
		return fmt.Errorf("thread has no messages")
	}

	customer, err := p.shop.CustomerByEmail(ctx, details.From)
	if err != nil && !errors.Is(err, shopify.ErrNotFound) {
		return fmt.Errorf("customer lookup: %w", err)
	}

	var order *shopify.Order
	if customer != nil {
		order, err = p.shop.LatestOrder(ctx, customer.ID)
		if err != nil && !errors.Is(err, shopify.ErrNotFound) {
			return fmt.Errorf("latest order: %w", err)
		}
		if order != nil {
			if err := p.shop.EnrichOrder(ctx, order); err != nil {
				p.log.Warnw("order enrichment incomplete", "thread", thread.ID, "err", err)
			}
		}
	}

	prompt := BuildChoicePrompt(details, templates, customer, order, locations)
	choice, err := p.model.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("model choice: %w", err)
	}

	template, err := ResolveChoice(choice, templates)
	if err != nil {
		return err
	}

	text := Personalize(template, details.Body, customer, order)
	htmlBody := strings.ReplaceAll(text, "\n", "<br>")
	if signature != "" {
		htmlBody = htmlBody + "<br><br>" + signature
	}

	if err := p.mail.CreateDraftReply(ctx, thread, text, htmlBody); err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	// Mark the thread only after the draft exists, so failures are retried.
	if err := p.mail.AddLabel(ctx, thread.ID, processedID); err != nil {
		return fmt.Errorf("apply processed label: %w", err)
	}
	p.log.Infow("draft created", "thread", thread.ID, "label", label, "choice", strings.TrimSpace(choice))
	return nil
}
