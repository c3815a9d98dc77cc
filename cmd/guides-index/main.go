package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/liliang-cn/sqvect/v2/pkg/sqvect"
	"github.com/spf13/cobra"

	"github.com/antoniostano/guides/internal/mode"
)

func main() {
	root := &cobra.Command{
		Use:   "guides-index",
		Short: "Build retrieval indexes for the guidance gateway",
	}
	root.AddCommand(newBuildCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newBuildCmd() *cobra.Command {
	var (
		sourceDir string
		indexDir  string
		only      string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build one index per category from plain-text corpus files",
		Long: "Reads <source-dir>/<category>.txt for every category, splits it into " +
			"paragraph chunks and writes <index-dir>/<category>.db. Queries run as " +
			"full-text search, so the stored vectors only need to be deterministic.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			modes := mode.All()
			if only != "" {
				m, ok := mode.Parse(only)
				if !ok {
					return fmt.Errorf("unknown category %q", only)
				}
				modes = []mode.Mode{m}
			}

			if err := os.MkdirAll(indexDir, 0o755); err != nil {
				return fmt.Errorf("create index dir: %w", err)
			}

			for _, m := range modes {
				if err := buildIndex(cmd.Context(), sourceDir, indexDir, m); err != nil {
					return fmt.Errorf("build %s: %w", m, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceDir, "source-dir", "corpus", "directory with <category>.txt files")
	cmd.Flags().StringVar(&indexDir, "index-dir", "indexes", "output directory for <category>.db files")
	cmd.Flags().StringVar(&only, "category", "", "build a single category instead of all")
	return cmd
}

func buildIndex(ctx context.Context, sourceDir, indexDir string, m mode.Mode) error {
	sourcePath := filepath.Join(sourceDir, string(m)+".txt")
	raw, err := os.ReadFile(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("skipping %s: no corpus file at %s", m, sourcePath)
			return nil
		}
		return fmt.Errorf("read corpus: %w", err)
	}

	chunks := chunkText(string(raw))
	if len(chunks) == 0 {
		log.Printf("skipping %s: corpus file is empty", m)
		return nil
	}

	indexPath := filepath.Join(indexDir, string(m)+".db")
	// Rebuild from scratch so removed corpus entries do not linger.
	if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale index: %w", err)
	}

	db, err := sqvect.Open(sqvect.DefaultConfig(indexPath), sqvect.WithEmbedder(newHashEmbedder(64)))
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	texts := make(map[string]string, len(chunks))
	for i, chunk := range chunks {
		texts[fmt.Sprintf("%s-%04d", m, i)] = chunk
	}

	if err := db.InsertTextBatch(ctx, texts, map[string]string{"category": string(m)}); err != nil {
		return fmt.Errorf("insert chunks: %w", err)
	}

	log.Printf("built %s: %d chunks -> %s", m, len(chunks), indexPath)
	return nil
}

const maxChunkRunes = 1200

// chunkText splits a corpus into paragraph chunks, further splitting
// paragraphs that exceed maxChunkRunes at line boundaries.
func chunkText(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len([]rune(para)) <= maxChunkRunes {
			chunks = append(chunks, para)
			continue
		}

		var current strings.Builder
		for _, line := range strings.Split(para, "\n") {
			if current.Len() > 0 && len([]rune(current.String()))+len([]rune(line)) > maxChunkRunes {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			current.WriteString(line)
			current.WriteString("\n")
		}
		if rest := strings.TrimSpace(current.String()); rest != "" {
			chunks = append(chunks, rest)
		}
	}
	return chunks
}

// hashEmbedder produces deterministic token-hash vectors. The indexes are
// queried with full-text search only, so the vectors just have to be stable
// and non-zero for sqvect to accept the rows.
type hashEmbedder struct {
	dim int
}

func newHashEmbedder(dim int) *hashEmbedder {
	return &hashEmbedder{dim: dim}
}

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[int(h.Sum32())%e.dim] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (e *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *hashEmbedder) Dim() int { return e.dim }
