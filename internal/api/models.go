package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/nbakr/mailtriage/internal/store"
)

// ProblemDetail is the RFC 7807 style error body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// TaskJSON is the wire shape of a ledger task.
type TaskJSON struct {
	ID                  int64    `json:"id"`
	EmailMessageID      string   `json:"email_message_id"`
	Subject             string   `json:"subject"`
	Sender              string   `json:"sender"`
	TaskSummary         string   `json:"task_summary"`
	TaskDetail          string   `json:"task_detail,omitempty"`
	RequiredAction      string   `json:"required_action,omitempty"`
	ReplyAcknowledge    string   `json:"reply_acknowledge,omitempty"`
	ReplyDone           string   `json:"reply_done,omitempty"`
	ReplyDelegate       string   `json:"reply_delegate,omitempty"`
	Status              string   `json:"status"`
	ActionTaken         string   `json:"action_taken,omitempty"`
	Priority            string   `json:"priority"`
	Project             string   `json:"project,omitempty"`
	Tags                []string `json:"tags"`
	DomainHint          string   `json:"domain_hint,omitempty"`
	EffortEstimateHours float64  `json:"effort_estimate_hours,omitempty"`
	BusinessImpact      string   `json:"business_impact,omitempty"`
	TriageCategory      string   `json:"triage_category,omitempty"`
	DelegatedTo         string   `json:"delegated_to,omitempty"`
	DelegatedAt         int64    `json:"delegated_at,omitempty"`
	ReceivedAt          int64    `json:"received_at"`
	CreatedAt           int64    `json:"created_at"`
	StatusUpdatedAt     int64    `json:"status_updated_at"`
	AutoCompletedAt     int64    `json:"auto_completed_at,omitempty"`
	CompletionEvidence  string   `json:"completion_evidence,omitempty"`
}

func toTaskJSON(t *store.Task) TaskJSON {
	var tags []string
	if err := json.Unmarshal([]byte(t.TagsJSON), &tags); err != nil || tags == nil {
		tags = []string{}
	}
	return TaskJSON{
		ID:                  t.ID,
		EmailMessageID:      t.EmailMessageID,
		Subject:             t.Subject,
		Sender:              t.Sender,
		TaskSummary:         t.TaskSummary,
		TaskDetail:          t.TaskDetail,
		RequiredAction:      t.RequiredAction,
		ReplyAcknowledge:    t.ReplyAcknowledge,
		ReplyDone:           t.ReplyDone,
		ReplyDelegate:       t.ReplyDelegate,
		Status:              t.Status,
		ActionTaken:         t.ActionTaken,
		Priority:            t.Priority,
		Project:             t.Project,
		Tags:                tags,
		DomainHint:          t.DomainHint,
		EffortEstimateHours: t.EffortEstimateHours,
		BusinessImpact:      t.BusinessImpact,
		TriageCategory:      t.TriageCategory,
		DelegatedTo:         t.DelegatedTo,
		DelegatedAt:         t.DelegatedAt,
		ReceivedAt:          t.ReceivedAt,
		CreatedAt:           t.CreatedAt,
		StatusUpdatedAt:     t.StatusUpdatedAt,
		AutoCompletedAt:     t.AutoCompletedAt,
		CompletionEvidence:  t.CompletionEvidence,
	}
}

// PersonJSON is the wire shape of a contact graph entry.
type PersonJSON struct {
	ID                int64              `json:"id"`
	Email             string             `json:"email"`
	Name              string             `json:"name,omitempty"`
	JobTitle          string             `json:"job_title,omitempty"`
	Department        string             `json:"department,omitempty"`
	OfficeLocation    string             `json:"office_location,omitempty"`
	ManagerName       string             `json:"manager_name,omitempty"`
	InteractionCount  int                `json:"interaction_count"`
	LastInteractionAt int64              `json:"last_interaction_at"`
	ManualRole        string             `json:"manual_role,omitempty"`
	IsHidden          bool               `json:"is_hidden"`
	Projects          []store.ProjectRef `json:"projects"`
}

func toPersonJSON(p *store.Person) PersonJSON {
	projects := p.Projects()
	if projects == nil {
		projects = []store.ProjectRef{}
	}
	return PersonJSON{
		ID:                p.ID,
		Email:             p.Email,
		Name:              p.Name,
		JobTitle:          p.JobTitle,
		Department:        p.Department,
		OfficeLocation:    p.OfficeLocation,
		ManagerName:       p.ManagerName,
		InteractionCount:  p.InteractionCount,
		LastInteractionAt: p.LastInteractionAt,
		ManualRole:        p.ManualRole,
		IsHidden:          p.IsHidden,
		Projects:          projects,
	}
}

// historicalSyncRequest selects a single calendar day to re-ingest.
type historicalSyncRequest struct {
	Date string `json:"date"` // "2006-01-02"
}

// patchTaskRequest carries operator edits to a task.
type patchTaskRequest struct {
	Status      *string `json:"status"`
	ActionTaken *string `json:"action_taken"`
	DelegatedTo *string `json:"delegated_to"`
}

// patchPersonRequest carries operator edits to a contact.
type patchPersonRequest struct {
	ManualRole *string `json:"manual_role"`
	IsHidden   *bool   `json:"is_hidden"`
}

// classificationSettings is the operator's extractor vocabulary.
type classificationSettings struct {
	Projects []string `json:"projects"`
	Tags     []string `json:"tags"`
	Domains  []string `json:"domains"`
}

type syncResponse struct {
	RunID         string `json:"run_id"`
	Analyzed      int    `json:"analyzed"`
	Created       int    `json:"created"`
	AutoCompleted int    `json:"auto_completed"`
	Archived      int64  `json:"archived"`
}
