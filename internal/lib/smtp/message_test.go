package smtp

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls   []string
	rcptErr error
	body    bytes.Buffer
}

func (c *fakeClient) Mail(from string) error {
	c.calls = append(c.calls, "MAIL "+from)
	return nil
}

func (c *fakeClient) Rcpt(to string) error {
	c.calls = append(c.calls, "RCPT "+to)
	return c.rcptErr
}

func (c *fakeClient) Data() (io.WriteCloser, error) {
	c.calls = append(c.calls, "DATA")
	return nopCloser{&c.body}, nil
}

func (c *fakeClient) Quit() error {
	c.calls = append(c.calls, "QUIT")
	return nil
}

func (c *fakeClient) Close() error {
	c.calls = append(c.calls, "CLOSE")
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type fakeDialer struct {
	client *fakeClient
	err    error
}

func (d fakeDialer) Connect() (Client, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.client, nil
}

func (d fakeDialer) From() string { return "noreply@example.com" }

func TestMessage_Bytes(t *testing.T) {
	m := Message{
		From:    "noreply@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Привет",
		Text:    "line1\nline2",
		Date:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	out := string(m.Bytes())

	assert.Contains(t, out, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, out, "Subject: =?utf-8?q?")
	assert.Contains(t, out, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\nline1\r\nline2"))

	ascii := Message{Subject: "Welcome", To: []string{"a@example.com"}}
	assert.Contains(t, string(ascii.Bytes()), "Subject: Welcome\r\n")
}

func TestDeliver(t *testing.T) {
	c := &fakeClient{}
	m := Message{From: "noreply@example.com", To: []string{"a@example.com"}, Subject: "Hi", Text: "body"}

	require.NoError(t, Deliver(fakeDialer{client: c}, m))
	assert.Equal(t, []string{"MAIL noreply@example.com", "RCPT a@example.com", "DATA", "QUIT", "CLOSE"}, c.calls)
	assert.Contains(t, c.body.String(), "Subject: Hi")
}

func TestDeliver_Errors(t *testing.T) {
	m := Message{From: "noreply@example.com", To: []string{"a@example.com"}}

	err := Deliver(fakeDialer{err: errors.New("connection refused")}, m)
	assert.ErrorContains(t, err, "connection refused")

	c := &fakeClient{rcptErr: errors.New("550 no such user")}
	err = Deliver(fakeDialer{client: c}, m)
	assert.ErrorContains(t, err, "RCPT TO a@example.com")
	assert.Equal(t, "CLOSE", c.calls[len(c.calls)-1])

	err = Deliver(fakeDialer{client: &fakeClient{}}, Message{})
	assert.ErrorContains(t, err, "no recipients")
}
