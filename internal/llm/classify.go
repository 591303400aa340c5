package llm

import (
	"context"
	"strings"
)

// Classification labels.
const (
	ClassAction = "ACTION"
	ClassInfo   = "INFO"
)

const triageSystemPrompt = `You are an executive email triage assistant.
Classify the email as ACTION if it requires the recipient to do something
(reply with a decision, produce work, approve, attend), or INFO if it is
purely informational (announcements, newsletters, status updates that need
no response). Answer with exactly one word: ACTION or INFO.`

// Classify labels normalized message content as ACTION or INFO using the
// lightweight triage model. Any failure defaults to INFO: the cheaper path.
func (c *OllamaClient) Classify(ctx context.Context, content string) string {
	resp, err := c.generate(ctx, c.triageModel, "Email Content:\n"+content, triageSystemPrompt, false)
	if err != nil {
		c.logger.Warn().Err(err).Msg("triage model failed, defaulting to INFO")
		return ClassInfo
	}
	if strings.Contains(strings.ToUpper(resp), ClassAction) {
		return ClassAction
	}
	return ClassInfo
}
