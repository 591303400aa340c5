package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Vocabulary is the operator's classification context injected into the
// extractor prompt. It changes what the model sees, never how the pipeline
// behaves.
type Vocabulary struct {
	Projects []string
	Tags     []string
	Domains  []string
}

// ReplyOptions carries the three typed reply drafts the extractor proposes.
type ReplyOptions struct {
	Acknowledge string `json:"acknowledge"`
	Done        string `json:"done"`
	Delegate    string `json:"delegate"`
}

// Extraction is the validated shape of the extractor's JSON output. Fields
// the model omitted keep their zero values; the pipeline owns the
// defaulting rules.
type Extraction struct {
	IsTask                string       `json:"is_task"`
	ConfidenceScore       int          `json:"task_confidence_score"`
	TaskSummary           string       `json:"task_summary"`
	TaskDetail            string       `json:"task_detail"`
	RequiredAction        string       `json:"required_action"`
	ReplyOptions          ReplyOptions `json:"reply_options"`
	Project               string       `json:"project"`
	Tags                  []string     `json:"tags"`
	DomainHint            string       `json:"domain_hint"`
	EffortEstimateMinutes int          `json:"effort_estimate_minutes"`
	BusinessImpact        string       `json:"business_impact"`
	TriageCategory        string       `json:"triage_category"`
	DelegatedToHint       string       `json:"delegated_to_hint"`
}

// Accepted reports whether the extraction clears the confidence bar for
// becoming a task.
func (e *Extraction) Accepted(minConfidence int) bool {
	return e != nil && e.IsTask == "YES" && e.ConfidenceScore >= minConfidence
}

const extractSystemPromptTemplate = `You extract structured task data from emails.
Respond with a single JSON object with these fields:
is_task ("YES" or "NO"), task_confidence_score (0-100), task_summary,
task_detail, required_action, reply_options (object with acknowledge, done,
delegate draft replies), project (one of {{PROJECTS}} or "Unknown"),
tags (subset of {{TAGS}}), domain_hint (one of {{DOMAINS}} or "Unknown"),
effort_estimate_minutes (integer), business_impact, triage_category
("quick_action", "deep_work" or "waiting_for"), delegated_to_hint.
Output only the JSON object.`

func buildExtractPrompt(vocab Vocabulary) string {
	p := extractSystemPromptTemplate
	p = strings.ReplaceAll(p, "{{PROJECTS}}", jsonList(vocab.Projects))
	p = strings.ReplaceAll(p, "{{TAGS}}", jsonList(vocab.Tags))
	p = strings.ReplaceAll(p, "{{DOMAINS}}", jsonList(vocab.Domains))
	return p
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

// Extract asks the smart model for structured task fields. Returns an error
// on transport failure and nil with no error when the model's output could
// not be parsed; the caller treats both as "not a task".
func (c *OllamaClient) Extract(ctx context.Context, content string, vocab Vocabulary) (*Extraction, error) {
	system := buildExtractPrompt(vocab)
	resp, err := c.generate(ctx, c.model, "Extract task details from:\n"+content, system, true)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	ext := ParseExtraction(resp)
	if ext == nil {
		c.logger.Error().Str("model", c.model).Msg("extractor returned unparseable output")
	}
	return ext, nil
}

// ParseExtraction recovers an Extraction from raw model output. Models fenced
// in code blocks or padded with prose still parse; anything without a JSON
// object yields nil.
func ParseExtraction(raw string) *Extraction {
	if raw == "" {
		return nil
	}

	text := raw
	if i := strings.Index(text, "```json"); i >= 0 {
		text = text[i+len("```json"):]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	} else if i := strings.Index(text, "```"); i >= 0 {
		text = text[i+3:]
		if j := strings.Index(text, "```"); j >= 0 {
			text = text[:j]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(text[start:end+1]), &ext); err != nil {
		return nil
	}
	return &ext
}
