package memory

import "context"

// DisabledStore satisfies Store without touching any backend. With memory
// disabled every conversation behaves as if it were fresh; no operation
// attempts a network call.
type DisabledStore struct{}

func (DisabledStore) GetMode(context.Context, string) (string, error) { return "", nil }

func (DisabledStore) SetMode(context.Context, string, string) error { return nil }

func (DisabledStore) ClearHistory(context.Context, string) error { return nil }

func (DisabledStore) AppendTurn(context.Context, string, string, string) error { return nil }

func (DisabledStore) LoadRecentHistory(context.Context, string, int) ([]Turn, error) {
	return nil, nil
}

func (DisabledStore) TrimHistory(context.Context, string, int) error { return nil }

func (DisabledStore) Driver() string { return "disabled" }

func (DisabledStore) Close() error { return nil }
