package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/nbakr/mailtriage/internal/ews"
	"github.com/nbakr/mailtriage/internal/llm"
	"github.com/nbakr/mailtriage/internal/mailtext"
	"github.com/nbakr/mailtriage/internal/store"
	"github.com/nbakr/mailtriage/internal/triage"
)

// projectUnknown is the sentinel the extractor uses when it cannot place a
// message; it never enters a person's project list.
const projectUnknown = "Unknown"

// outcome is what one message reduces to: a task candidate, a digest
// snippet, or nothing (junk).
type outcome struct {
	task    *store.Task
	snippet *store.Snippet
}

// processMessage runs the per-message decision chain: normalize, junk check,
// prefix overrides, classify, extract, triage. The sender is recorded in the
// contact graph on every path, junk included.
func (p *Pipeline) processMessage(ctx context.Context, log zerolog.Logger, m ews.Message, vocab llm.Vocabulary) outcome {
	cleaned := mailtext.Clean(mailtext.PreferText(m.TextBody, m.Body), p.truncateChars)
	content := "Subject: " + m.Subject + "\nBody: " + cleaned

	if p.rules.Junk.Match(content) || p.rules.Junk.Match(m.Sender.Email) {
		log.Debug().Str("message_id", m.MessageID).Str("subject", m.Subject).Msg("junk, dropped")
		p.updateCircle(ctx, log, m, "")
		return outcome{}
	}

	fyi := p.rules.FYI.MatchString(m.Subject)
	approve := p.rules.Approve.MatchString(m.Subject)

	var class string
	switch {
	case fyi:
		class = llm.ClassInfo
	case approve:
		class = llm.ClassAction
	default:
		began := time.Now()
		class = p.classifier.Classify(ctx, content)
		p.metrics.ObserveLLMCall("classify", time.Since(began).Seconds())
	}

	var ext *llm.Extraction
	if class == llm.ClassAction {
		began := time.Now()
		var err error
		ext, err = p.extractor.Extract(ctx, content, vocab)
		p.metrics.ObserveLLMCall("extract", time.Since(began).Seconds())
		if err != nil {
			p.metrics.RecordError("pipeline", "extract")
			log.Warn().Err(err).Str("message_id", m.MessageID).Msg("extraction failed, downgrading to digest")
			ext = nil
		}
	}

	if !ext.Accepted(p.confidenceMin) {
		p.updateCircle(ctx, log, m, "")
		return outcome{snippet: &store.Snippet{
			Sender:  m.Sender.Email,
			Subject: m.Subject,
			Snippet: mailtext.Snippet(cleaned),
		}}
	}

	task := p.buildTask(log, m, ext, content, approve)
	p.updateCircle(ctx, log, m, ext.Project)
	return outcome{task: task}
}

// buildTask maps an accepted extraction onto a ledger row. suggested_reply
// is intentionally left empty; only the three typed drafts are populated.
func (p *Pipeline) buildTask(log zerolog.Logger, m ews.Message, ext *llm.Extraction, content string, approve bool) *store.Task {
	received := m.ReceivedAt
	if received.IsZero() {
		log.Warn().Str("message_id", m.MessageID).Msg("message carries no receipt time, using processing time")
		received = time.Now()
	}

	summary := ext.TaskSummary
	if summary == "" {
		summary = m.Subject
	}
	project := ext.Project
	if project == "" {
		project = projectUnknown
	}
	domain := ext.DomainHint
	if domain == "" {
		domain = projectUnknown
	}

	return &store.Task{
		EmailMessageID:   m.MessageID,
		Subject:          m.Subject,
		Sender:           m.Sender.Email,
		TaskSummary:      summary,
		TaskDetail:       ext.TaskDetail,
		RequiredAction:   ext.RequiredAction,
		ReplyAcknowledge: ext.ReplyOptions.Acknowledge,
		ReplyDone:        ext.ReplyOptions.Done,
		ReplyDelegate:    ext.ReplyOptions.Delegate,

		Priority:            triage.Priority(content, p.rules),
		Project:             project,
		TagsJSON:            encodeStrings(ext.Tags),
		DomainHint:          domain,
		EffortEstimateHours: float64(ext.EffortEstimateMinutes) / 60.0,
		BusinessImpact:      ext.BusinessImpact,
		TriageCategory:      triage.Category(approve, ext.TriageCategory, ext.EffortEstimateMinutes),

		EWSItemID:    m.ItemID,
		EWSChangeKey: m.ChangeKey,
		ToRecipients: encodeAddresses(m.To),
		CcRecipients: encodeAddresses(m.Cc),
		ReceivedAt:   received.UTC().UnixMilli(),
	}
}

func encodeStrings(items []string) string {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return string(raw)
}

func encodeAddresses(boxes []ews.Mailbox) string {
	emails := make([]string, 0, len(boxes))
	for _, b := range boxes {
		if b.Email != "" {
			emails = append(emails, b.Email)
		}
	}
	return encodeStrings(emails)
}
