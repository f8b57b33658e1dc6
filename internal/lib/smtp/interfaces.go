// Package smtp доставка писем по SMTP: соединение с сервером, сборка
// письма и отправка.
package smtp

import "io"

// Client часть *smtp.Client, нужная для отправки.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает авторизованную сессию с сервером.
type Dialer interface {
	Connect() (Client, error)
	From() string
}
