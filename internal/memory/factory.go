package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// NewStore selects a memory driver.
//
// Driver "auto" picks postgres when a database URL is configured, otherwise
// the in-process store. A postgres connection failure downgrades to disabled
// memory instead of blocking startup: conversations then run without rolling
// context, which is the documented degraded behavior.
func NewStore(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "auto":
		if strings.TrimSpace(databaseURL) == "" {
			return NewInMemoryStore(), nil
		}
		return postgresOrDisabled(ctx, databaseURL), nil
	case "postgres":
		if strings.TrimSpace(databaseURL) == "" {
			return nil, fmt.Errorf("memory driver postgres requires DATABASE_URL")
		}
		return postgresOrDisabled(ctx, databaseURL), nil
	case "memory":
		return NewInMemoryStore(), nil
	case "disabled":
		return DisabledStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported memory driver %q", driver)
	}
}

func postgresOrDisabled(ctx context.Context, databaseURL string) Store {
	s, err := NewPostgresStore(ctx, databaseURL)
	if err != nil {
		log.Printf("memory: postgres unavailable, running with memory disabled: %v", err)
		return DisabledStore{}
	}
	return s
}
