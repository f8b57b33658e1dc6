package paymentprovider

import (
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/magabrotheeeer/workflow-saas/internal/billingevent"
)

// ErrInvalidSignature подпись вебхука не совпала, устарела или повреждена.
var ErrInvalidSignature = errors.New("invalid signature")

// Verifier проверяет подпись вебхука общим секретом.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier создаёт проверку с допустимым возрастом подписи tolerance.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return &Verifier{secret: secret, tolerance: tolerance}
}

// Verify проверяет подпись и возвращает конверт события.
// Версия API события не сверяется с версией SDK. Без секрета любой вебхук отклоняется.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (billingevent.Envelope, error) {
	if v.secret == "" {
		return billingevent.Envelope{}, fmt.Errorf("%w: webhook secret is not configured", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return billingevent.Envelope{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	env := billingevent.Envelope{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data != nil {
		env.Object = event.Data.Raw
	}
	return env, nil
}
