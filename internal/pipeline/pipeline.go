// Package pipeline is the sync orchestrator: it sequences completion
// scanning, inbox ingestion, per-message classification and triage, contact
// graph updates and digest aggregation for one window, and owns the archival
// sweep. All external calls sit behind narrow interfaces so each stage is
// independently testable.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nbakr/mailtriage/internal/config"
	"github.com/nbakr/mailtriage/internal/ews"
	"github.com/nbakr/mailtriage/internal/llm"
	"github.com/nbakr/mailtriage/internal/lru"
	"github.com/nbakr/mailtriage/internal/metrics"
	"github.com/nbakr/mailtriage/internal/rules"
	"github.com/nbakr/mailtriage/internal/store"
)

// ErrNoMailbox is returned by Run when no mail source was configured.
var ErrNoMailbox = errors.New("pipeline: mailbox not configured")

// MailSource is the mailbox boundary. A connectivity error from either call
// is fatal for the run.
type MailSource interface {
	FetchInbox(ctx context.Context, start, end time.Time) ([]ews.Message, error)
	FetchSent(ctx context.Context, start, end time.Time) ([]ews.SentMessage, error)
}

// Classifier labels message content as ACTION or INFO.
type Classifier interface {
	Classify(ctx context.Context, content string) string
}

// Extractor pulls structured task fields out of actionable content.
type Extractor interface {
	Extract(ctx context.Context, content string, vocab llm.Vocabulary) (*llm.Extraction, error)
}

// Directory resolves organizational metadata for an address; nil means the
// lookup failed or found nothing, and callers tolerate that.
type Directory interface {
	ResolveName(ctx context.Context, email string) *ews.DirectoryEntry
}

// Deps bundles the pipeline's collaborators. Directory may be nil.
type Deps struct {
	Store      *store.Store
	Source     MailSource
	Classifier Classifier
	Extractor  Extractor
	Directory  Directory
	Rules      *rules.Rules
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Pipeline drives one synchronous triage run at a time.
type Pipeline struct {
	store      *store.Store
	source     MailSource
	classifier Classifier
	extractor  Extractor
	directory  Directory
	rules      *rules.Rules
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	operatorEmail    string
	confidenceMin    int
	truncateChars    int
	defaultSyncDays  int
	archiveAfterDays int
	defaultVocab     llm.Vocabulary
	dirCache         *lru.Cache[string, *ews.DirectoryEntry]
}

// New builds a pipeline from configuration and collaborators.
func New(cfg *config.Config, d Deps) *Pipeline {
	cacheSize := cfg.DirectoryCacheSize
	if cacheSize < 1 {
		cacheSize = 1
	}
	return &Pipeline{
		store:      d.Store,
		source:     d.Source,
		classifier: d.Classifier,
		extractor:  d.Extractor,
		directory:  d.Directory,
		rules:      d.Rules,
		metrics:    d.Metrics,
		logger:     d.Logger.With().Str("component", "pipeline").Logger(),

		operatorEmail:    cfg.OperatorEmail(),
		confidenceMin:    cfg.TaskConfidenceMin,
		truncateChars:    cfg.TruncateChars,
		defaultSyncDays:  cfg.DefaultSyncDays,
		archiveAfterDays: cfg.ArchiveAfterDays,
		defaultVocab: llm.Vocabulary{
			Projects: cfg.DefaultProjectList(),
			Tags:     cfg.DefaultTagList(),
			Domains:  cfg.DefaultDomainList(),
		},
		dirCache: lru.New[string, *ews.DirectoryEntry](cacheSize),
	}
}

// Result summarizes one run.
type Result struct {
	RunID         string    `json:"run_id"`
	WindowStart   time.Time `json:"window_start"`
	WindowEnd     time.Time `json:"window_end"`
	Analyzed      int       `json:"analyzed"`
	Created       int       `json:"created"`
	AutoCompleted int       `json:"auto_completed"`
}

// Run processes one window. Completion scanning happens before ingestion so
// replies sent before the cutoff can close tasks ahead of new ones being
// created. Per-message failures are logged and skipped; only mailbox
// connectivity errors surface, and then no watermark is persisted.
func (p *Pipeline) Run(ctx context.Context, start, end time.Time, persistWatermark bool) (*Result, error) {
	began := time.Now()
	res := &Result{RunID: uuid.NewString(), WindowStart: start, WindowEnd: end}
	log := p.logger.With().Str("run_id", res.RunID).Logger()

	trigger := "historical"
	if persistWatermark {
		trigger = "watermark"
	}

	log.Info().
		Time("window_start", start).
		Time("window_end", end).
		Bool("persist_watermark", persistWatermark).
		Msg("sync run starting")

	if p.source == nil {
		p.metrics.RecordError("pipeline", "no_mailbox")
		p.metrics.RecordSyncRun(trigger, "error", time.Since(began).Seconds())
		return res, ErrNoMailbox
	}

	closed, err := p.scanCompletions(ctx, log, start, end)
	if err != nil {
		p.metrics.RecordError("pipeline", "fetch_sent")
		p.metrics.RecordSyncRun(trigger, "error", time.Since(began).Seconds())
		return res, err
	}
	res.AutoCompleted = closed

	msgs, err := p.source.FetchInbox(ctx, start, end)
	if err != nil {
		p.metrics.RecordError("pipeline", "fetch_inbox")
		p.metrics.RecordSyncRun(trigger, "error", time.Since(began).Seconds())
		return res, err
	}

	vocab := p.vocabulary()
	var snippets []store.Snippet

	for _, m := range msgs {
		if m.MessageID == "" {
			log.Warn().Str("subject", m.Subject).Msg("message without id, skipping")
			continue
		}

		exists, err := p.store.TaskExists(m.MessageID)
		if err != nil {
			log.Error().Err(err).Str("message_id", m.MessageID).Msg("dedup check failed, skipping message")
			continue
		}
		if exists {
			continue
		}

		res.Analyzed++
		out := p.processMessage(ctx, log, m, vocab)

		switch {
		case out.task != nil:
			if err := p.store.CreateTask(out.task); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					continue
				}
				p.metrics.RecordError("pipeline", "create_task")
				log.Error().Err(err).Str("message_id", m.MessageID).Msg("task insert failed, skipping message")
				continue
			}
			res.Created++
			p.metrics.RecordTaskCreated(out.task.Priority)
		case out.snippet != nil:
			snippets = append(snippets, *out.snippet)
		}
	}

	p.metrics.RecordAnalyzed(res.Analyzed)

	if len(snippets) > 0 {
		date := start.UTC().Format("2006-01-02")
		if err := p.store.AppendSnippets(date, snippets); err != nil {
			p.metrics.RecordError("pipeline", "digest")
			log.Error().Err(err).Str("date", date).Msg("digest write failed")
		}
	}

	if persistWatermark {
		if err := p.store.SetSetting(store.SettingLastSyncTime, end.UTC().Format(time.RFC3339)); err != nil {
			log.Error().Err(err).Msg("watermark write failed")
		}
	}

	p.metrics.RecordSyncRun(trigger, "ok", time.Since(began).Seconds())
	log.Info().
		Int("analyzed", res.Analyzed).
		Int("created", res.Created).
		Int("auto_completed", res.AutoCompleted).
		Dur("elapsed", time.Since(began)).
		Msg("sync run complete")
	return res, nil
}

// SyncWindow derives the next run's window: from the stored watermark (or
// the configured default lookback when none exists) up to now.
func (p *Pipeline) SyncWindow(now time.Time) (time.Time, time.Time) {
	start := now.AddDate(0, 0, -p.defaultSyncDays)
	if raw := p.store.GetSetting(store.SettingLastSyncTime, ""); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			start = t
		} else {
			p.logger.Warn().Str("value", raw).Msg("unparseable watermark, using default lookback")
		}
	}
	return start, now
}

// Archive sweeps closed tasks whose last status change is older than the
// configured threshold into the archive, clearing their reply drafts.
func (p *Pipeline) Archive(ctx context.Context) (int64, error) {
	_ = ctx
	cutoff := time.Now().AddDate(0, 0, -p.archiveAfterDays).UnixMilli()
	n, err := p.store.ArchiveStaleTasks(cutoff)
	if err != nil {
		p.metrics.RecordError("pipeline", "archive")
		return 0, fmt.Errorf("archival sweep: %w", err)
	}
	if n > 0 {
		p.metrics.RecordArchived(int(n))
		p.logger.Info().Int64("archived", n).Msg("archival sweep complete")
	}
	return n, nil
}

// vocabulary merges operator-saved classification lists over config defaults.
func (p *Pipeline) vocabulary() llm.Vocabulary {
	return llm.Vocabulary{
		Projects: p.store.GetJSONListSetting(store.SettingClassificationProjects, p.defaultVocab.Projects),
		Tags:     p.store.GetJSONListSetting(store.SettingClassificationTags, p.defaultVocab.Tags),
		Domains:  p.store.GetJSONListSetting(store.SettingClassificationDomains, p.defaultVocab.Domains),
	}
}
