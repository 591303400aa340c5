package api

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/nbakr/mailtriage/internal/config"
	"github.com/nbakr/mailtriage/internal/ews"
	"github.com/nbakr/mailtriage/internal/health"
	"github.com/nbakr/mailtriage/internal/pipeline"
	"github.com/nbakr/mailtriage/internal/store"
)

// Syncer is the slice of the pipeline the API drives.
type Syncer interface {
	Run(ctx context.Context, start, end time.Time, persistWatermark bool) (*pipeline.Result, error)
	SyncWindow(now time.Time) (time.Time, time.Time)
	Archive(ctx context.Context) (int64, error)
}

// MailboxProbe reports the mailbox session state for the status endpoint.
type MailboxProbe interface {
	State() ews.State
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	syncer  Syncer
	store   *store.Store
	checker *health.Checker
	cfg     *config.Config
	mailbox MailboxProbe // may be nil when EWS is not configured
	logger  zerolog.Logger

	startTime time.Time
	syncMu    sync.Mutex // one sync at a time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(syncer Syncer, st *store.Store, checker *health.Checker, cfg *config.Config, mailbox MailboxProbe, logger zerolog.Logger) *Handlers {
	return &Handlers{
		syncer:    syncer,
		store:     st,
		checker:   checker,
		cfg:       cfg,
		mailbox:   mailbox,
		logger:    logger.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}
}

// Sync handles POST /api/sync: one watermark-based run followed by the
// archival sweep.
func (h *Handlers) Sync(c *fiber.Ctx) error {
	if !h.syncMu.TryLock() {
		return problemResponse(c, fiber.StatusConflict,
			"sync_in_progress", "Conflict",
			"A sync run is already in progress")
	}
	defer h.syncMu.Unlock()

	start, end := h.syncer.SyncWindow(time.Now())
	res, err := h.syncer.Run(c.Context(), start, end, true)
	if err != nil {
		return problemResponse(c, fiber.StatusBadGateway,
			"mailbox_unavailable", "Bad Gateway",
			err.Error())
	}

	archived, err := h.syncer.Archive(c.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("post-sync archival sweep failed")
	}

	return c.JSON(syncResponse{
		RunID:         res.RunID,
		Analyzed:      res.Analyzed,
		Created:       res.Created,
		AutoCompleted: res.AutoCompleted,
		Archived:      archived,
	})
}

// SyncHistorical handles POST /api/sync/historical: re-ingests a single
// calendar day without touching the watermark.
func (h *Handlers) SyncHistorical(c *fiber.Ctx) error {
	var req historicalSyncRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_date", "Bad Request",
			"date must be YYYY-MM-DD")
	}

	if !h.syncMu.TryLock() {
		return problemResponse(c, fiber.StatusConflict,
			"sync_in_progress", "Conflict",
			"A sync run is already in progress")
	}
	defer h.syncMu.Unlock()

	res, err := h.syncer.Run(c.Context(), day, day.AddDate(0, 0, 1), false)
	if err != nil {
		return problemResponse(c, fiber.StatusBadGateway,
			"mailbox_unavailable", "Bad Gateway",
			err.Error())
	}

	archived, err := h.syncer.Archive(c.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("post-sync archival sweep failed")
	}

	return c.JSON(syncResponse{
		RunID:         res.RunID,
		Analyzed:      res.Analyzed,
		Created:       res.Created,
		AutoCompleted: res.AutoCompleted,
		Archived:      archived,
	})
}

// Status handles GET /api/status.
func (h *Handlers) Status(c *fiber.Ctx) error {
	open, err := h.store.ListOpenTasks()
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}

	mailboxState := "not_configured"
	if h.mailbox != nil {
		mailboxState = h.mailbox.State().String()
	}

	// Report the cached probe results rather than re-probing on every status
	// poll; readiness checks keep the cache fresh.
	checks := h.checker.LastResults()
	if len(checks) == 0 {
		checks = h.checker.RunAll(c.Context())
	}

	return c.JSON(fiber.Map{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"mailbox":        mailboxState,
		"last_sync_time": h.store.GetSetting(store.SettingLastSyncTime, ""),
		"open_tasks":     len(open),
		"checks":         checks,
	})
}

// ListTasks handles GET /api/tasks.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	f := store.TaskFilter{
		Status: c.Query("status"),
		Limit:  c.QueryInt("limit", 0),
	}
	if f.Status == "open" {
		f.Status = ""
		f.Statuses = []string{store.StatusNew, store.StatusInProgress}
	}

	tasks, err := h.store.ListTasks(f)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}

	out := make([]TaskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskJSON(t))
	}
	return c.JSON(fiber.Map{"tasks": out, "total": len(out)})
}

// PatchTask handles PATCH /api/tasks/:id: operator status edits and
// delegation.
func (h *Handlers) PatchTask(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_id", "Bad Request", "task id must be an integer")
	}

	task, err := h.store.GetTask(int64(id))
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}
	if task == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"task_not_found", "Not Found", "No such task")
	}

	var req patchTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if req.DelegatedTo != nil && *req.DelegatedTo != "" {
		if err := h.store.DelegateTask(int64(id), *req.DelegatedTo); err != nil {
			return problemResponse(c, fiber.StatusInternalServerError,
				"store_error", "Internal Server Error", err.Error())
		}
	}

	if req.Status != nil {
		if !validStatus(*req.Status) {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_status", "Bad Request",
				"Unknown status: "+*req.Status)
		}
		action := ""
		if req.ActionTaken != nil {
			action = *req.ActionTaken
		}
		if err := h.store.UpdateTaskStatus(int64(id), *req.Status, action); err != nil {
			return problemResponse(c, fiber.StatusInternalServerError,
				"store_error", "Internal Server Error", err.Error())
		}
	}

	task, err = h.store.GetTask(int64(id))
	if err != nil || task == nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", "task reload failed")
	}
	return c.JSON(toTaskJSON(task))
}

// ListCircle handles GET /api/circle.
func (h *Handlers) ListCircle(c *fiber.Ctx) error {
	people, err := h.store.ListPeople(store.PersonFilter{
		Search:        c.Query("search"),
		Role:          c.Query("role"),
		IncludeHidden: c.QueryBool("include_hidden", false),
	})
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}

	out := make([]PersonJSON, 0, len(people))
	for _, p := range people {
		out = append(out, toPersonJSON(p))
	}
	return c.JSON(fiber.Map{"people": out, "total": len(out)})
}

// PatchPerson handles PATCH /api/circle/:id.
func (h *Handlers) PatchPerson(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_id", "Bad Request", "person id must be an integer")
	}

	var req patchPersonRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	role := ""
	if req.ManualRole != nil {
		role = *req.ManualRole
	}
	hidden := false
	if req.IsHidden != nil {
		hidden = *req.IsHidden
	}

	if err := h.store.UpdatePersonProfile(int64(id), role, hidden); err != nil {
		return problemResponse(c, fiber.StatusNotFound,
			"person_not_found", "Not Found", err.Error())
	}
	return c.JSON(fiber.Map{"status": "updated"})
}

// Digest handles GET /api/digest/:date.
func (h *Handlers) Digest(c *fiber.Ctx) error {
	date := c.Params("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_date", "Bad Request", "date must be YYYY-MM-DD")
	}

	sum, err := h.store.GetSummary(date)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}

	snippets := []store.Snippet{}
	if sum != nil {
		snippets = sum.Snippets()
	}
	return c.JSON(fiber.Map{"date": date, "snippets": snippets})
}

// GetClassification handles GET /api/settings/classification.
func (h *Handlers) GetClassification(c *fiber.Ctx) error {
	return c.JSON(classificationSettings{
		Projects: h.store.GetJSONListSetting(store.SettingClassificationProjects, h.cfg.DefaultProjectList()),
		Tags:     h.store.GetJSONListSetting(store.SettingClassificationTags, h.cfg.DefaultTagList()),
		Domains:  h.store.GetJSONListSetting(store.SettingClassificationDomains, h.cfg.DefaultDomainList()),
	})
}

// PutClassification handles PUT /api/settings/classification.
func (h *Handlers) PutClassification(c *fiber.Ctx) error {
	var req classificationSettings
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if err := h.store.SetJSONListSetting(store.SettingClassificationProjects, req.Projects); err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}
	if err := h.store.SetJSONListSetting(store.SettingClassificationTags, req.Tags); err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}
	if err := h.store.SetJSONListSetting(store.SettingClassificationDomains, req.Domains); err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}
	return c.JSON(fiber.Map{"status": "updated"})
}

func validStatus(s string) bool {
	switch s {
	case store.StatusNew, store.StatusInProgress, store.StatusPaused, store.StatusClosed, store.StatusArchived:
		return true
	}
	return false
}
