package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nbakr/mailtriage/internal/mailtext"
)

const (
	evidenceTimeLayout = "2006-01-02 15:04"
	evidenceSnippetMax = 100
)

// scanCompletions cross-references sent replies in the window against open
// tasks and auto-closes any whose reply body carries completion language.
// The first qualifying reply wins; a task closed in this scan is not
// re-evaluated. Returns the number of tasks closed.
func (p *Pipeline) scanCompletions(ctx context.Context, log zerolog.Logger, start, end time.Time) (int, error) {
	open, err := p.store.ListOpenTasks()
	if err != nil {
		return 0, fmt.Errorf("listing open tasks: %w", err)
	}
	if len(open) == 0 {
		return 0, nil
	}

	byMessageID := make(map[string]int64, len(open))
	for _, t := range open {
		if t.EmailMessageID != "" {
			byMessageID[t.EmailMessageID] = t.ID
		}
	}

	sent, err := p.source.FetchSent(ctx, start, end)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, sm := range sent {
		if sm.InReplyTo == "" {
			continue
		}
		taskID, ok := byMessageID[sm.InReplyTo]
		if !ok {
			continue
		}

		body := mailtext.Clean(mailtext.PreferText(sm.TextBody, sm.Body), p.truncateChars)
		if !p.rules.Completion.Match(body) {
			continue
		}

		if err := p.store.AutoCompleteTask(taskID, completionEvidence(body, sm.SentAt)); err != nil {
			log.Warn().Err(err).Int64("task_id", taskID).Msg("auto-complete failed")
			continue
		}
		delete(byMessageID, sm.InReplyTo)
		closed++
		log.Info().Int64("task_id", taskID).Str("in_reply_to", sm.InReplyTo).Msg("task auto-completed from sent reply")
	}

	if closed > 0 {
		p.metrics.RecordAutoCompleted(closed)
	}
	return closed, nil
}

// completionEvidence renders the audit string stored alongside an
// auto-closed task: send time plus a short prefix of the reply.
func completionEvidence(body string, sentAt time.Time) string {
	snippet := mailtext.Truncate(strings.Join(strings.Fields(body), " "), evidenceSnippetMax)
	when := sentAt
	if when.IsZero() {
		when = time.Now()
	}
	return fmt.Sprintf("Replied via Outlook on %s: \"%s\"", when.UTC().Format(evidenceTimeLayout), snippet)
}
