package retrieval

import (
	"context"
	"fmt"
	"os"

	"github.com/liliang-cn/sqvect/v2/pkg/sqvect"
)

// sqvectIndex serves passages from a single-mode sqvect database using pure
// full-text search, so no embedding model is needed at query time.
type sqvectIndex struct {
	db *sqvect.DB
}

// OpenIndex opens the index file at path. The file must already exist:
// sqvect would happily create an empty database for a missing path, and an
// empty index must report as unavailable instead.
func OpenIndex(path string) (Backend, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat index: %w", err)
	}

	db, err := sqvect.Open(sqvect.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &sqvectIndex{db: db}, nil
}

func (i *sqvectIndex) Retrieve(ctx context.Context, query string, topK int) ([]Passage, error) {
	results, err := i.db.SearchTextOnly(ctx, query, sqvect.TextSearchOptions{TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, res := range results {
		if res.Content == "" {
			continue
		}
		passages = append(passages, Passage{Content: res.Content, Score: res.Score})
	}
	return passages, nil
}

func (i *sqvectIndex) Close() error {
	return i.db.Close()
}
