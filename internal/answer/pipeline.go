package answer

import (
	"context"
	"log"
	"time"

	"github.com/antoniostano/guides/internal/llm"
	"github.com/antoniostano/guides/internal/memory"
	"github.com/antoniostano/guides/internal/mode"
	"github.com/antoniostano/guides/internal/observability"
	"github.com/antoniostano/guides/internal/retrieval"
)

// Pipeline turns a student question into a reply: retrieve passages for the
// active category, fold them into a prompt with the rolling history, and ask
// the model. Memory failures degrade to a history-less answer; only a
// generation failure produces the apology message.
type Pipeline struct {
	store    memory.Store
	registry *retrieval.Registry
	client   llm.Client
	metrics  *observability.Metrics

	historyLimit      int
	topK              int
	generationTimeout time.Duration
	retrievalTimeout  time.Duration
}

type PipelineConfig struct {
	HistoryLimit      int
	TopK              int
	GenerationTimeout time.Duration
	RetrievalTimeout  time.Duration
}

func NewPipeline(store memory.Store, registry *retrieval.Registry, client llm.Client, metrics *observability.Metrics, cfg PipelineConfig) *Pipeline {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = memory.DefaultHistoryLimit
	}
	if cfg.TopK <= 0 {
		cfg.TopK = retrieval.DefaultTopK
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	if cfg.RetrievalTimeout <= 0 {
		cfg.RetrievalTimeout = 5 * time.Second
	}
	return &Pipeline{
		store:             store,
		registry:          registry,
		client:            client,
		metrics:           metrics,
		historyLimit:      cfg.HistoryLimit,
		topK:              cfg.TopK,
		generationTimeout: cfg.GenerationTimeout,
		retrievalTimeout:  cfg.RetrievalTimeout,
	}
}

// Answer produces a retrieval-augmented reply for identity's question in m.
func (p *Pipeline) Answer(ctx context.Context, identity string, m mode.Mode, question string) string {
	if !p.registry.Available(m) {
		return unavailableMessage(m)
	}

	history := p.loadHistory(ctx, identity)
	passages, passagesNote := p.retrieveContext(ctx, m, question)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: ragSystemPrompt(m)})
	for _, t := range history {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: composeQuestion(m, passages, passagesNote, question),
	})

	reply, err := p.complete(ctx, messages, 0.3)
	if err != nil {
		log.Printf("answer: generation for %s failed: %v", identity, err)
		if p.metrics != nil {
			p.metrics.BackendErrors.WithLabelValues("llm").Inc()
		}
		return MsgApology
	}

	reply = FormatReply(reply)
	p.recordTurns(ctx, identity, question, reply)
	return reply
}

// General produces a reply without retrieval, used for utility commands like
// translate and summarize. History is not consulted or written.
func (p *Pipeline) General(ctx context.Context, identity, instruction string) string {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: generalSystemPrompt},
		{Role: llm.RoleUser, Content: instruction},
	}

	reply, err := p.complete(ctx, messages, 0.7)
	if err != nil {
		log.Printf("answer: general completion for %s failed: %v", identity, err)
		if p.metrics != nil {
			p.metrics.BackendErrors.WithLabelValues("llm").Inc()
		}
		return MsgApology
	}
	return FormatReply(reply)
}

func (p *Pipeline) loadHistory(ctx context.Context, identity string) []memory.Turn {
	history, err := p.store.LoadRecentHistory(ctx, identity, p.historyLimit)
	if err != nil {
		log.Printf("answer: loading history for %s failed, answering without it: %v", identity, err)
		if p.metrics != nil {
			p.metrics.BackendErrors.WithLabelValues("memory").Inc()
		}
		return nil
	}
	return history
}

func (p *Pipeline) retrieveContext(ctx context.Context, m mode.Mode, question string) ([]retrieval.Passage, string) {
	rctx, cancel := context.WithTimeout(ctx, p.retrievalTimeout)
	defer cancel()

	passages, err := p.registry.Retrieve(rctx, m, question, p.topK)
	if err != nil {
		log.Printf("answer: retrieval for %s failed: %v", m, err)
		if p.metrics != nil {
			p.metrics.BackendErrors.WithLabelValues("retrieval").Inc()
		}
		return nil, retrievalFailedContext
	}
	if len(passages) == 0 {
		return nil, noPassagesContext
	}
	return passages, ""
}

func (p *Pipeline) complete(ctx context.Context, messages []llm.Message, temperature float32) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, p.generationTimeout)
	defer cancel()

	start := time.Now()
	reply, err := p.client.Complete(gctx, messages, temperature)
	if p.metrics != nil {
		p.metrics.ObserveGenerationLatency(time.Since(start))
	}
	return reply, err
}

func (p *Pipeline) recordTurns(ctx context.Context, identity, question, reply string) {
	if err := p.store.AppendTurn(ctx, identity, memory.RoleUser, question); err != nil {
		log.Printf("answer: persisting user turn for %s failed: %v", identity, err)
		return
	}
	if err := p.store.AppendTurn(ctx, identity, memory.RoleAssistant, reply); err != nil {
		log.Printf("answer: persisting assistant turn for %s failed: %v", identity, err)
		return
	}
	if err := p.store.TrimHistory(ctx, identity, p.historyLimit); err != nil {
		log.Printf("answer: trimming history for %s failed: %v", identity, err)
	}
}
