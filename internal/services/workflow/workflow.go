// Package services CRUD рабочих процессов пользователя.
package services

import (
	"context"
	"encoding/json"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/workflow-saas/internal/audit"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
)

// ListLimit сколько последних процессов отдаёт список.
const ListLimit = 100

// Repository хранилище рабочих процессов. Все операции ограничены владельцем.
type Repository interface {
	CreateWorkflow(ctx context.Context, w models.Workflow) (*models.Workflow, error)
	ListWorkflows(ctx context.Context, userID string, limit int) ([]*models.Workflow, error)
	GetWorkflow(ctx context.Context, userID, id string) (*models.Workflow, error)
	UpdateWorkflow(ctx context.Context, userID, id string, p models.WorkflowPatch) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, userID, id string) error
}

// Service сервис рабочих процессов.
type Service struct {
	repo  Repository
	audit *audit.Writer
}

// New создаёт сервис.
func New(repo Repository, auditor *audit.Writer) *Service {
	return &Service{repo: repo, audit: auditor}
}

// Sanitize экранирует HTML в пользовательском тексте.
func Sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// Create создаёт процесс в статусе draft.
func (s *Service) Create(ctx context.Context, userID, name, description string, body json.RawMessage, ip string) (*models.Workflow, error) {
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}
	w, err := s.repo.CreateWorkflow(ctx, models.Workflow{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         Sanitize(name),
		Description:  Sanitize(description),
		WorkflowJSON: body,
		Status:       models.WorkflowDraft,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "workflow.created", w.ID, ip)
	return w, nil
}

// List возвращает последние ListLimit процессов.
func (s *Service) List(ctx context.Context, userID string) ([]*models.Workflow, error) {
	return s.repo.ListWorkflows(ctx, userID, ListLimit)
}

// Get возвращает процесс владельца или models.ErrWorkflowNotFound.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.Workflow, error) {
	return s.repo.GetWorkflow(ctx, userID, id)
}

// Update применяет частичное обновление.
func (s *Service) Update(ctx context.Context, userID, id string, p models.WorkflowPatch, ip string) (*models.Workflow, error) {
	if p.Name != nil {
		v := Sanitize(*p.Name)
		p.Name = &v
	}
	if p.Description != nil {
		v := Sanitize(*p.Description)
		p.Description = &v
	}
	w, err := s.repo.UpdateWorkflow(ctx, userID, id, p)
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "workflow.updated", id, ip)
	return w, nil
}

// Delete удаляет процесс.
func (s *Service) Delete(ctx context.Context, userID, id, ip string) error {
	if err := s.repo.DeleteWorkflow(ctx, userID, id); err != nil {
		return err
	}
	s.record(ctx, userID, "workflow.deleted", id, ip)
	return nil
}

func (s *Service) record(ctx context.Context, userID, action, id, ip string) {
	s.audit.Record(ctx, audit.Entry{
		UserID:     userID,
		Action:     action,
		EntityType: "workflow",
		EntityID:   id,
		IP:         ip,
	})
}
