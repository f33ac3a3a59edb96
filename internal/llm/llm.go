package llm

import (
	"context"
	"errors"
)

// Generator turns a prompt into generated text.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	Model() string
}

// ErrPermanent marks generation failures that retrying cannot fix, such as a
// rejected API key or a blocked prompt.
var ErrPermanent = errors.New("permanent generation failure")
