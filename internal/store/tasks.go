package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Task lifecycle states.
const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusPaused     = "paused"
	StatusClosed     = "closed"
	StatusArchived   = "archived"
)

// action_taken tags.
const (
	ActionClosedNoAction = "closed_no_action"
	ActionDone           = "done"
	ActionAcknowledge    = "acknowledge"
	ActionDelegate       = "delegate"
	ActionAutoCompleted  = "auto_completed"
)

// Task is one unit of required action derived from a single inbound message.
// Timestamps are unix milliseconds; zero means not set.
type Task struct {
	ID             int64
	EmailMessageID string
	Subject        string
	Sender         string
	TaskSummary    string
	TaskDetail     string
	RequiredAction string
	SuggestedReply string

	ReplyAcknowledge string
	ReplyDone        string
	ReplyDelegate    string

	Status      string
	ActionTaken string

	Priority            string
	Project             string
	TagsJSON            string // JSON array of strings
	DomainHint          string
	EffortEstimateHours float64 // 0 = unknown
	BusinessImpact      string
	TriageCategory      string
	DelegatedTo         string
	DelegatedAt         int64

	EWSItemID      string
	EWSChangeKey   string
	ToRecipients   string // JSON
	CcRecipients   string // JSON
	ReceivedAt     int64
	CreatedAt      int64
	StatusUpdatedAt int64

	AutoCompletedAt    int64
	CompletionEvidence string
}

// TaskFilter selects tasks for listing.
type TaskFilter struct {
	Status   string
	Statuses []string
	Limit    int
}

// CreateTask inserts a new task row. Returns ErrDuplicate when a task with
// the same email_message_id (or provider item id) already exists; the
// existing row is left untouched.
func (s *Store) CreateTask(t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	if t.StatusUpdatedAt == 0 {
		t.StatusUpdatedAt = now
	}
	if t.Status == "" {
		t.Status = StatusNew
	}
	if t.Priority == "" {
		t.Priority = "low"
	}
	if t.TagsJSON == "" {
		t.TagsJSON = "[]"
	}
	// Receipt time falls back to ledger-write time when the provider gave none.
	if t.ReceivedAt == 0 {
		t.ReceivedAt = t.CreatedAt
	}

	query := `
	INSERT INTO tasks (
		email_message_id, subject, sender, task_summary, task_detail,
		required_action, suggested_reply, reply_acknowledge, reply_done,
		reply_delegate, status, action_taken, priority, project, tags,
		domain_hint, effort_estimate_hours, business_impact, triage_category,
		delegated_to, delegated_at, ews_item_id, ews_change_key,
		to_recipients, cc_recipients, received_at, created_at,
		status_updated_at, auto_completed_at, completion_evidence
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.Exec(query,
		t.EmailMessageID, t.Subject, t.Sender, t.TaskSummary, t.TaskDetail,
		nullStr(t.RequiredAction), nullStr(t.SuggestedReply),
		nullStr(t.ReplyAcknowledge), nullStr(t.ReplyDone), nullStr(t.ReplyDelegate),
		t.Status, nullStr(t.ActionTaken), t.Priority, t.Project, t.TagsJSON,
		t.DomainHint, nullFloat(t.EffortEstimateHours), nullStr(t.BusinessImpact),
		t.TriageCategory, nullStr(t.DelegatedTo), nullInt(t.DelegatedAt),
		nullStr(t.EWSItemID), nullStr(t.EWSChangeKey),
		nullStr(t.ToRecipients), nullStr(t.CcRecipients),
		nullInt(t.ReceivedAt), t.CreatedAt, t.StatusUpdatedAt,
		nullInt(t.AutoCompletedAt), nullStr(t.CompletionEvidence),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create task: %w", err)
	}

	t.ID, _ = res.LastInsertId()
	return nil
}

// TaskExists reports whether a task with the given message id is already in
// the ledger.
func (s *Store) TaskExists(emailMessageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRow(`SELECT 1 FROM tasks WHERE email_message_id = ?`, emailMessageID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	return true, nil
}

// GetTask retrieves a task by row id. Returns nil when not found.
func (s *Store) GetTask(id int64) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryOneTask(`WHERE id = ?`, id)
}

// GetTaskByMessageID retrieves a task by its idempotency key.
func (s *Store) GetTaskByMessageID(emailMessageID string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryOneTask(`WHERE email_message_id = ?`, emailMessageID)
}

// ListTasks retrieves tasks matching the filter, newest received first.
func (s *Store) ListTasks(f TaskFilter) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := taskSelect
	args := []interface{}{}

	switch {
	case len(f.Statuses) > 0:
		query += ` WHERE status IN (?` + repeat(",?", len(f.Statuses)-1) + `)`
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	case f.Status != "":
		query += ` WHERE status = ?`
		args = append(args, f.Status)
	}

	query += ` ORDER BY received_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// ListOpenTasks returns tasks still awaiting action (new or in_progress).
func (s *Store) ListOpenTasks() ([]*Task, error) {
	return s.ListTasks(TaskFilter{Statuses: []string{StatusNew, StatusInProgress}})
}

// UpdateTaskStatus transitions a task and stamps status_updated_at.
// actionTaken may be empty to leave the existing tag in place.
func (s *Store) UpdateTaskStatus(id int64, status, actionTaken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE tasks SET status = ?, status_updated_at = ?`
	args := []interface{}{status, time.Now().UnixMilli()}
	if actionTaken != "" {
		query += `, action_taken = ?`
		args = append(args, actionTaken)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task not found: %d", id)
	}
	return nil
}

// AutoCompleteTask closes a task from completion evidence found in a sent
// reply thread.
func (s *Store) AutoCompleteTask(id int64, evidence string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	query := `
	UPDATE tasks
	SET status = ?, action_taken = ?, auto_completed_at = ?,
	    completion_evidence = ?, status_updated_at = ?
	WHERE id = ? AND status IN (?, ?)
	`
	res, err := s.db.Exec(query,
		StatusClosed, ActionAutoCompleted, now, evidence, now,
		id, StatusNew, StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("failed to auto-complete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %d not open", id)
	}
	return nil
}

// DelegateTask marks a task as waiting on someone else.
func (s *Store) DelegateTask(id int64, delegatedTo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	query := `
	UPDATE tasks
	SET action_taken = ?, delegated_to = ?, delegated_at = ?,
	    triage_category = 'waiting_for', status_updated_at = ?
	WHERE id = ?
	`
	res, err := s.db.Exec(query, ActionDelegate, delegatedTo, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delegate task: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task not found: %d", id)
	}
	return nil
}

// ArchiveStaleTasks transitions closed tasks whose last status change is
// older than cutoff to archived, clearing every reply draft. Archived rows
// are terminal, so re-running is a no-op for them.
func (s *Store) ArchiveStaleTasks(cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	UPDATE tasks
	SET status = ?, reply_acknowledge = NULL, reply_done = NULL,
	    reply_delegate = NULL, suggested_reply = NULL, status_updated_at = ?
	WHERE status = ? AND status_updated_at < ?
	`
	res, err := s.db.Exec(query, StatusArchived, time.Now().UnixMilli(), StatusClosed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to archive tasks: %w", err)
	}
	return res.RowsAffected()
}

// ---- row scanning ----

const taskSelect = `
	SELECT id, email_message_id, subject, sender, task_summary, task_detail,
	       required_action, suggested_reply, reply_acknowledge, reply_done,
	       reply_delegate, status, action_taken, priority, project, tags,
	       domain_hint, effort_estimate_hours, business_impact,
	       triage_category, delegated_to, delegated_at, ews_item_id,
	       ews_change_key, to_recipients, cc_recipients, received_at,
	       created_at, status_updated_at, auto_completed_at,
	       completion_evidence
	FROM tasks
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) queryOneTask(where string, args ...interface{}) (*Task, error) {
	row := s.db.QueryRow(taskSelect+where, args...)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

func scanTask(r rowScanner) (*Task, error) {
	t := &Task{}
	var (
		subject, sender, detail, required, suggested        sql.NullString
		ack, done, delegate, actionTaken, impact            sql.NullString
		delegatedTo, itemID, changeKey, toRec, ccRec, evid  sql.NullString
		effort                                              sql.NullFloat64
		delegatedAt, receivedAt, autoCompletedAt            sql.NullInt64
	)

	err := r.Scan(
		&t.ID, &t.EmailMessageID, &subject, &sender, &t.TaskSummary, &detail,
		&required, &suggested, &ack, &done, &delegate, &t.Status, &actionTaken,
		&t.Priority, &t.Project, &t.TagsJSON, &t.DomainHint, &effort, &impact,
		&t.TriageCategory, &delegatedTo, &delegatedAt, &itemID, &changeKey,
		&toRec, &ccRec, &receivedAt, &t.CreatedAt, &t.StatusUpdatedAt,
		&autoCompletedAt, &evid,
	)
	if err != nil {
		return nil, err
	}

	t.Subject = subject.String
	t.Sender = sender.String
	t.TaskDetail = detail.String
	t.RequiredAction = required.String
	t.SuggestedReply = suggested.String
	t.ReplyAcknowledge = ack.String
	t.ReplyDone = done.String
	t.ReplyDelegate = delegate.String
	t.ActionTaken = actionTaken.String
	t.BusinessImpact = impact.String
	t.DelegatedTo = delegatedTo.String
	t.EWSItemID = itemID.String
	t.EWSChangeKey = changeKey.String
	t.ToRecipients = toRec.String
	t.CcRecipients = ccRec.String
	t.CompletionEvidence = evid.String
	t.EffortEstimateHours = effort.Float64
	t.DelegatedAt = delegatedAt.Int64
	t.ReceivedAt = receivedAt.Int64
	t.AutoCompletedAt = autoCompletedAt.Int64
	return t, nil
}

// ---- null helpers ----

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func nullFloat(f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: f != 0}
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
