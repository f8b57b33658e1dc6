// Package models содержит доменные структуры приложения: пользователей,
// подписки, рабочие процессы, записи аудита и уведомления.
// Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	PasswordHash     string    `json:"-"`
	StripeCustomerID *string   `json:"-"` // Ссылка на покупателя у платёжного провайдера, заполняется лениво
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasCustomer сообщает, привязан ли пользователь к покупателю провайдера.
func (u *User) HasCustomer() bool {
	return u.StripeCustomerID != nil && *u.StripeCustomerID != ""
}

// UserSettings пользовательские настройки.
type UserSettings struct {
	Timezone           string `json:"timezone"`
	EmailNotifications bool   `json:"email_notifications"`
	WeeklyDigest       bool   `json:"weekly_digest"`
}

// DefaultUserSettings настройки для пользователя, который их ещё не менял.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		Timezone:           "UTC",
		EmailNotifications: true,
		WeeklyDigest:       false,
	}
}

// SettingsPatch частичное обновление настроек; nil означает "не менять".
type SettingsPatch struct {
	Name               *string
	Timezone           *string
	EmailNotifications *bool
	WeeklyDigest       *bool
}

// ResetToken токен сброса пароля.
type ResetToken struct {
	Identifier string
	Token      string
	Expires    time.Time
}
