package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Snippet is one non-actionable message recorded in a day's digest.
type Snippet struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
}

// DailySummary accumulates the digest snippets for one calendar day.
type DailySummary struct {
	ID          int64
	SummaryDate string // "2006-01-02"
	RawSnippets string // JSON list of Snippet
}

// Snippets decodes the accumulated snippet list.
func (d *DailySummary) Snippets() []Snippet {
	var out []Snippet
	if d.RawSnippets == "" {
		return out
	}
	_ = json.Unmarshal([]byte(d.RawSnippets), &out)
	return out
}

// AppendSnippets merges new snippets into the day's summary, creating the
// row on first write. Existing snippets are preserved, never replaced.
func (s *Store) AppendSnippets(date string, snippets []Snippet) error {
	if len(snippets) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow(`SELECT raw_snippets FROM daily_summaries WHERE summary_date = ?`, date).Scan(&raw)
	exists := true
	if err == sql.ErrNoRows {
		exists = false
		raw = "[]"
	} else if err != nil {
		return fmt.Errorf("failed to read daily summary: %w", err)
	}

	var current []Snippet
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		// A corrupted column loses history rather than blocking the digest.
		s.logger.Warn().Str("date", date).Msg("resetting unparseable daily summary")
		current = nil
	}
	current = append(current, snippets...)

	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode snippets: %w", err)
	}

	if exists {
		_, err = s.db.Exec(`UPDATE daily_summaries SET raw_snippets = ? WHERE summary_date = ?`, string(merged), date)
	} else {
		_, err = s.db.Exec(`INSERT INTO daily_summaries (summary_date, raw_snippets) VALUES (?, ?)`, date, string(merged))
	}
	if err != nil {
		return fmt.Errorf("failed to write daily summary: %w", err)
	}
	return nil
}

// GetSummary retrieves one day's digest. Returns nil when absent.
func (s *Store) GetSummary(date string) (*DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := &DailySummary{}
	err := s.db.QueryRow(`SELECT id, summary_date, raw_snippets FROM daily_summaries WHERE summary_date = ?`, date).
		Scan(&d.ID, &d.SummaryDate, &d.RawSnippets)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily summary: %w", err)
	}
	return d, nil
}
