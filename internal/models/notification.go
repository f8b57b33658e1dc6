package models

// NotificationKind тип письма, которое отправит воркер.
type NotificationKind string

const (
	NotificationWelcome             NotificationKind = "welcome"
	NotificationPasswordReset       NotificationKind = "password_reset"
	NotificationSubscriptionCreated NotificationKind = "subscription_created"
	NotificationPaymentFailed       NotificationKind = "payment_failed"
)

// Notification сообщение в очередь уведомлений.
type Notification struct {
	Kind     NotificationKind `json:"kind"`
	Email    string           `json:"email"`
	Name     string           `json:"name,omitempty"`
	PlanName string           `json:"plan_name,omitempty"`
	Token    string           `json:"token,omitempty"`
}
