package smtp

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"
)

// Message текстовое письмо в UTF-8.
type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
	Date    time.Time
}

// Bytes собирает письмо с заголовками, строки разделены CRLF.
func (m Message) Bytes() []byte {
	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}

	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", m.From)
	header("To", strings.Join(m.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(m.Text, "\r\n", "\n"), "\n", "\r\n"))
	return b.Bytes()
}

// Deliver открывает сессию через d и отправляет m всем получателям.
func Deliver(d Dialer, m Message) error {
	const op = "smtp.Deliver"
	if len(m.To) == 0 {
		return fmt.Errorf("%s: no recipients", op)
	}

	c, err := d.Connect()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = c.Close()
	}()

	if err = c.Mail(m.From); err != nil {
		return fmt.Errorf("%s: MAIL FROM %s: %w", op, m.From, err)
	}
	for _, rcpt := range m.To {
		if err = c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("%s: RCPT TO %s: %w", op, rcpt, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("%s: DATA: %w", op, err)
	}
	if _, err = wc.Write(m.Bytes()); err != nil {
		_ = wc.Close()
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err = wc.Close(); err != nil {
		return fmt.Errorf("%s: end DATA: %w", op, err)
	}
	if err = c.Quit(); err != nil {
		return fmt.Errorf("%s: QUIT: %w", op, err)
	}
	return nil
}
