package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/scripta/scripta-api/internal/notify"
)

// FakeGenerator is an in-memory text model. By default it returns a numbered
// post so that successive calls produce distinct content.
type FakeGenerator struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	err     error
	output  string
}

func NewFakeGenerator() *FakeGenerator {
	return &FakeGenerator{}
}

func (g *FakeGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if g.output != "" {
		return g.output, nil
	}
	return fmt.Sprintf("generated post number %d", g.calls), nil
}

func (g *FakeGenerator) Model() string {
	return "fake-model"
}

// FailWith makes every following call return err. Pass nil to recover.
func (g *FakeGenerator) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// RespondWith fixes the generated text.
func (g *FakeGenerator) RespondWith(output string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.output = output
}

func (g *FakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *FakeGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// CaptureSender records notifications instead of sending them.
type CaptureSender struct {
	mu       sync.Mutex
	messages []notify.Message
}

func NewCaptureSender() *CaptureSender {
	return &CaptureSender{}
}

func (s *CaptureSender) Send(_ context.Context, kind notify.Kind, to string, data map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make(map[string]string, len(data))
	for k, v := range data {
		copied[k] = v
	}
	s.messages = append(s.messages, notify.Message{Kind: kind, To: to, Data: copied})
}

func (s *CaptureSender) Messages() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.messages...)
}

// Count returns how many messages of kind were sent to to.
func (s *CaptureSender) Count(kind notify.Kind, to string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, m := range s.messages {
		if m.Kind == kind && m.To == to {
			n++
		}
	}
	return n
}

// LastCode returns the code of the newest message of kind sent to to.
func (s *CaptureSender) LastCode(kind notify.Kind, to string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if m.Kind == kind && m.To == to {
			code, ok := m.Data["code"]
			return code, ok
		}
	}
	return "", false
}
