// Package ai extracts structured transaction fields from free-form
// text with a generative model. The model is asked for strict JSON;
// anything it cannot determine comes back null and is left for the
// capture flow's defaults.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"moneta/internal/core"
	"moneta/internal/ledger"
)

// DefaultModel is the model used when the configuration names none.
const DefaultModel = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Taxonomy lists the categories the model may choose from.
type Taxonomy interface {
	MainCategories(ctx context.Context, kind core.Kind) ([]string, error)
	SubCategories(ctx context.Context, main string, kind core.Kind) ([]string, error)
}

// Extractor implements ledger.Extractor on top of a generative model.
type Extractor struct {
	client   *genai.Client
	model    string
	taxonomy Taxonomy
}

// New creates an Extractor. Credentials come from the environment, the
// way the genai client resolves them.
func New(ctx context.Context, model string, taxonomy Taxonomy) (*Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Extractor{client: client, model: model, taxonomy: taxonomy}, nil
}

var _ ledger.Extractor = (*Extractor)(nil)

// Extract asks the model to read rawText as one transaction.
func (e *Extractor) Extract(ctx context.Context, rawText string, preferred core.Kind) (ledger.Extraction, error) {
	prompt, err := e.buildPrompt(ctx, preferred)
	if err != nil {
		return ledger.Extraction{}, err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
				{Text: "Transaction text:\n" + rawText},
			},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return ledger.Extraction{}, fmt.Errorf("generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return ledger.Extraction{}, ErrEmptyResponse
	}
	return decodeExtraction(raw)
}

func (e *Extractor) buildPrompt(ctx context.Context, preferred core.Kind) (string, error) {
	var b strings.Builder
	b.WriteString("You are a personal ledger assistant. Read the transaction text " +
		"below and extract its fields.\n\n" +
		"Output STRICT JSON only: a single object, no comments, no Markdown, " +
		"no code fences. Output must begin with \"{\" and end with \"}\".\n\n" +
		"The object must have exactly these fields, each null when the text " +
		"does not determine it:\n" +
		"- \"date\": string \"YYYY-MM-DD\" or \"YYYY-MM-DD HH:MM:SS\", or null\n" +
		"- \"amount\": positive number, or null\n" +
		"- \"currency\": ISO 4217 code string, or null\n" +
		"- \"mainCategory\": string, or null\n" +
		"- \"subCategory\": string, or null\n" +
		"- \"counterparty\": merchant or person name string, or null\n" +
		"- \"note\": short free-text string, or null\n" +
		"- \"kind\": \"expense\" or \"income\", or null\n\n")

	if preferred.IsValid() {
		fmt.Fprintf(&b, "When the text does not clearly state the kind, prefer %q.\n\n", string(preferred))
	}

	if err := e.writeTaxonomy(ctx, &b); err != nil {
		return "", err
	}

	b.WriteString("Rules:\n" +
		"- Never invent an amount; null is better than a guess.\n" +
		"- Keep the counterparty as written in the text.\n" +
		"- Category names are case-sensitive and must match the list exactly.\n")
	return b.String(), nil
}

// writeTaxonomy appends the allowed category tree so the model only
// picks names the registry knows.
func (e *Extractor) writeTaxonomy(ctx context.Context, b *strings.Builder) error {
	if e.taxonomy == nil {
		return nil
	}
	b.WriteString("Use ONLY the following categories and subcategories:\n\n")
	for _, kind := range []core.Kind{core.Expense, core.Income} {
		mains, err := e.taxonomy.MainCategories(ctx, kind)
		if err != nil {
			return fmt.Errorf("list %s categories: %w", kind, err)
		}
		fmt.Fprintf(b, "%s:\n", kind)
		for _, main := range mains {
			subs, err := e.taxonomy.SubCategories(ctx, main, kind)
			if err != nil {
				return fmt.Errorf("list %s/%s subcategories: %w", kind, main, err)
			}
			fmt.Fprintf(b, "  %s: %s\n", main, strings.Join(subs, ", "))
		}
		b.WriteString("\n")
	}
	return nil
}

// wireExtraction mirrors the JSON object the prompt demands.
type wireExtraction struct {
	Date         *string  `json:"date"`
	Amount       *float64 `json:"amount"`
	Currency     *string  `json:"currency"`
	MainCategory *string  `json:"mainCategory"`
	SubCategory  *string  `json:"subCategory"`
	Counterparty *string  `json:"counterparty"`
	Note         *string  `json:"note"`
	Kind         *string  `json:"kind"`
}

// decodeExtraction parses the model's reply, stripping code fences and
// surrounding chatter if the model ignored the formatting instructions.
func decodeExtraction(raw string) (ledger.Extraction, error) {
	clean := cleanModelJSON(raw)

	var wire wireExtraction
	if err := json.Unmarshal([]byte(clean), &wire); err != nil {
		return ledger.Extraction{}, fmt.Errorf("unmarshal model reply: %w", err)
	}
	return ledger.Extraction{
		Date:         wire.Date,
		Amount:       wire.Amount,
		Currency:     wire.Currency,
		MainCategory: wire.MainCategory,
		SubCategory:  wire.SubCategory,
		Counterparty: wire.Counterparty,
		Note:         wire.Note,
		Kind:         wire.Kind,
	}, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	// Keep only the outermost object if chatter surrounds it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
