package models

import (
	"encoding/json"
	"time"
)

// AuditEntry запись журнала действий.
type AuditEntry struct {
	ID         string          `json:"id"`
	UserID     *string         `json:"user_id,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditFilter параметры выборки журнала.
type AuditFilter struct {
	UserID string
	Action string
	Limit  int
	Offset int
}

// Export выгрузка данных пользователя.
type Export struct {
	ExportedAt time.Time     `json:"exported_at"`
	User       *User         `json:"user"`
	Settings   UserSettings  `json:"settings"`
	Workflows  []*Workflow   `json:"workflows"`
	Activity   []*AuditEntry `json:"activity"`
}
