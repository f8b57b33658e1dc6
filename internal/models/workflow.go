package models

import (
	"encoding/json"
	"time"
)

// WorkflowStatus состояние рабочего процесса.
type WorkflowStatus string

const (
	WorkflowDraft    WorkflowStatus = "draft"
	WorkflowActive   WorkflowStatus = "active"
	WorkflowArchived WorkflowStatus = "archived"
)

// Workflow пользовательский рабочий процесс.
type Workflow struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	WorkflowJSON json.RawMessage `json:"workflow_json"`
	Status       WorkflowStatus  `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// WorkflowPatch частичное обновление; nil означает "не менять".
type WorkflowPatch struct {
	Name         *string
	Description  *string
	WorkflowJSON json.RawMessage
	Status       *WorkflowStatus
}
