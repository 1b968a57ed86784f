// Package classify assigns specialization tags to scraped listings whose
// category text defeated keyword inference. It asks Haiku for tags and
// clamps the answer to the known specialization set.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cassidypignatello/bali-renovation-os/internal/match"
	"github.com/cassidypignatello/bali-renovation-os/internal/resilience"
	"github.com/cassidypignatello/bali-renovation-os/internal/worker"
	"github.com/cassidypignatello/bali-renovation-os/pkg/anthropic"
)

// systemPrompt instructs the model to emit strict JSON tags.
const systemPrompt = `You classify Indonesian construction businesses by specialization.
Given a business name and its Google Maps category text, respond with ONLY valid JSON:
{"specializations": ["pool", "bathroom", "kitchen", "general"]}
Use only tags from that set. Pick the tags the business clearly serves; use ["general"] when unsure.`

// knownTags is the closed specialization vocabulary.
var knownTags = map[string]bool{
	"pool":                      true,
	"bathroom":                  true,
	"kitchen":                   true,
	match.GeneralSpecialization: true,
}

// Classifier tags listings using an Anthropic model. A nil *Classifier is
// valid and classifies nothing, so the refresh pipeline can run without
// an API key.
type Classifier struct {
	ai      anthropic.Client
	model   string
	retry   resilience.RetryPolicy
	breaker *resilience.Breaker
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRetryPolicy overrides the retry policy for API calls.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(c *Classifier) { c.retry = p }
}

// WithBreaker overrides the circuit breaker for API calls.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Classifier) { c.breaker = b }
}

// New creates a Classifier. Returns nil when ai is nil.
func New(ai anthropic.Client, model string, opts ...Option) *Classifier {
	if ai == nil {
		return nil
	}
	c := &Classifier{
		ai:      ai,
		model:   model,
		retry:   resilience.DefaultRetryPolicy(),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("anthropic", "classify")
	}
	return c
}

// Refine re-tags rec when keyword inference produced nothing more specific
// than "general" and the record carries category text worth asking about.
// The record is left unchanged on any error.
func (c *Classifier) Refine(ctx context.Context, rec *worker.Record) {
	if c == nil || rec == nil {
		return
	}
	if !onlyGeneral(rec.Specializations) || len(rec.GmapsCategories) == 0 {
		return
	}

	tags, err := c.classify(ctx, rec.BusinessName, rec.GmapsCategories)
	if err != nil {
		zap.L().Warn("specialization classification failed",
			zap.String("business_name", rec.BusinessName),
			zap.Error(err),
		)
		return
	}
	if len(tags) == 0 {
		return
	}
	rec.Specializations = tags
}

func (c *Classifier) classify(ctx context.Context, name string, categories []string) ([]string, error) {
	userMsg := fmt.Sprintf("Business name: %s\nCategories: %s", name, strings.Join(categories, ", "))

	req := anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 128,
		System:    []anthropic.SystemBlock{{Text: systemPrompt}},
		Messages:  []anthropic.Message{{Role: "user", Content: userMsg}},
	}

	resp, err := resilience.RetryValue(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.RunValue(ctx, c.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return c.ai.CreateMessage(ctx, req)
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: claude request")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, eris.New("classify: empty claude response")
	}

	resp.Usage.LogCost(c.model, "classify")

	// Find JSON in the response (it may have surrounding text).
	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart < 0 || jsonEnd < 0 || jsonEnd <= jsonStart {
		return nil, eris.Errorf("classify: no JSON in response: %s", text)
	}

	var result struct {
		Specializations []string `json:"specializations"`
	}
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &result); err != nil {
		return nil, eris.Wrap(err, "classify: parse response JSON")
	}

	return clampTags(result.Specializations), nil
}

// clampTags drops anything outside the known vocabulary and dedupes.
func clampTags(tags []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if !knownTags[tag] || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func onlyGeneral(specs []string) bool {
	if len(specs) == 0 {
		return true
	}
	for _, s := range specs {
		if s != match.GeneralSpecialization {
			return false
		}
	}
	return true
}
