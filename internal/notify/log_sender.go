package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes notifications to the log instead of delivering them. It is
// the development mailbox, so it includes codes.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "mailbox").Logger()}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	r := render(msg)
	s.logger.Info().
		Str("kind", string(msg.Kind)).
		Str("to", msg.To).
		Str("subject", r.Subject).
		Str("code", msg.Data["code"]).
		Msg("email")
	return nil
}
