package models

import (
	"strings"
	"time"
)

// SubscriptionStatus статус подписки в том виде, в каком его сообщает провайдер.
type SubscriptionStatus string

const (
	StatusIncomplete SubscriptionStatus = "incomplete"
	StatusTrialing   SubscriptionStatus = "trialing"
	StatusActive     SubscriptionStatus = "active"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusCanceled   SubscriptionStatus = "canceled"
	StatusUnpaid     SubscriptionStatus = "unpaid"
)

// NormalizeStatus приводит статус провайдера к одному из известных.
// incomplete_expired считается отменой, paused и всё неизвестное дают unpaid:
// доступа нет, но подписка может восстановиться следующим событием.
func NormalizeStatus(raw string) SubscriptionStatus {
	switch s := SubscriptionStatus(strings.ToLower(raw)); s {
	case StatusIncomplete, StatusTrialing, StatusActive, StatusPastDue, StatusCanceled, StatusUnpaid:
		return s
	case "incomplete_expired":
		return StatusCanceled
	default:
		return StatusUnpaid
	}
}

// Subscription локальная копия подписки у провайдера.
// ID совпадает с идентификатором провайдера и служит ключом идемпотентности.
type Subscription struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	Status             SubscriptionStatus `json:"status"`
	PriceID            string             `json:"price_id"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd  bool               `json:"cancel_at_period_end"`
	TrialEnd           *time.Time         `json:"trial_end,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Plan тарифный план, вычисляемый из ссылки на цену.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Access результат проверки доступа к платным функциям.
type Access struct {
	HasAccess    bool          `json:"has_access"`
	Plan         Plan          `json:"plan"`
	Reason       string        `json:"reason,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// SubscriptionAction действие пользователя над своей подпиской.
type SubscriptionAction string

const (
	ActionCancel            SubscriptionAction = "cancel"
	ActionCancelImmediately SubscriptionAction = "cancel_immediately"
	ActionReactivate        SubscriptionAction = "reactivate"
	ActionChangePlan        SubscriptionAction = "change_plan"
)

// PlanTiers идентификаторы цен платных тарифов из конфигурации.
type PlanTiers struct {
	StarterPriceID    string
	ProPriceID        string
	EnterprisePriceID string
}

// PlanFor определяет тариф по ссылке на цену. По умолчанию starter,
// enterprise проверяется последним и имеет приоритет. Подстроки сравниваются
// с учётом регистра. Пустые идентификаторы из конфигурации ни с чем не совпадают.
func (t PlanTiers) PlanFor(priceID string) Plan {
	plan := PlanStarter
	if strings.Contains(priceID, "pro") || (t.ProPriceID != "" && priceID == t.ProPriceID) {
		plan = PlanPro
	}
	if strings.Contains(priceID, "enterprise") || (t.EnterprisePriceID != "" && priceID == t.EnterprisePriceID) {
		plan = PlanEnterprise
	}
	return plan
}

// PriceFor возвращает идентификатор цены для платного тарифа.
func (t PlanTiers) PriceFor(plan Plan) (string, bool) {
	var id string
	switch plan {
	case PlanStarter:
		id = t.StarterPriceID
	case PlanPro:
		id = t.ProPriceID
	case PlanEnterprise:
		id = t.EnterprisePriceID
	}
	return id, id != ""
}
