package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Kind string

const (
	KindWelcome         Kind = "welcome"
	KindLoginCode       Kind = "login-verification-code"
	KindPasswordReset   Kind = "password-reset-code"
	KindNewLogin        Kind = "new-login"
	KindPasswordChanged Kind = "password-changed"
)

// Message is one notification. Data keys depend on Kind: every kind uses
// "username"; codes use "code"; login codes also use "ip" and "userAgent".
type Message struct {
	Kind Kind
	To   string
	Data map[string]string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher delivers messages through a Sender in the background. Delivery
// failures are logged and never returned to the caller.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		logger:  logger.With().Str("component", "notify").Logger(),
	}
}

// Send returns immediately. Response time must not depend on the provider,
// or reset requests would reveal which emails have accounts.
func (d *Dispatcher) Send(ctx context.Context, kind Kind, to string, data map[string]string) {
	// Detached from the request so a client disconnect doesn't cancel delivery.
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, Message{Kind: kind, To: to, Data: data}); err != nil {
			d.logger.Error().Err(err).Str("kind", string(kind)).Msg("notification failed")
			return
		}
		d.logger.Debug().Str("kind", string(kind)).Msg("notification sent")
	}()
}

// Wait blocks until every pending delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
