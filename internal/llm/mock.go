package llm

import (
	"context"
	"fmt"
)

// MockClient returns deterministic canned completions. It backs keyless
// local runs and tests.
type MockClient struct {
	// Reply, when set, overrides the default canned response.
	Reply func(messages []Message, temperature float32) (string, error)
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Complete(_ context.Context, messages []Message, temperature float32) (string, error) {
	if c.Reply != nil {
		return c.Reply(messages, temperature)
	}
	if len(messages) == 0 {
		return "", ErrEmptyCompletion
	}
	last := messages[len(messages)-1]
	return fmt.Sprintf("[mock completion] %s", last.Content), nil
}

func (c *MockClient) Name() string { return "mock" }
