package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/antoniostano/guides/internal/channel"
	"github.com/antoniostano/guides/internal/config"
	"github.com/antoniostano/guides/internal/memory"
	"github.com/antoniostano/guides/internal/mode"
	"github.com/antoniostano/guides/internal/observability"
	"github.com/antoniostano/guides/internal/retrieval"
)

const maxWebhookBody = 1 << 20

// EventHandler consumes one normalized webhook event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev channel.Event)
}

type Server struct {
	cfg        config.Config
	dispatcher EventHandler
	registry   *retrieval.Registry
	store      memory.Store
	metrics    *observability.Metrics
}

func New(cfg config.Config, dispatcher EventHandler, registry *retrieval.Registry, store memory.Store, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		registry:   registry,
		store:      store,
		metrics:    metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/callback", s.handleCallback)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.healthPayload("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.healthPayload("ready"))
}

func (s *Server) healthPayload(status string) map[string]any {
	indexes := make(map[string]bool, len(mode.All()))
	for _, m := range mode.All() {
		indexes[string(m)] = s.registry.Available(m)
	}
	return map[string]any{
		"status":        status,
		"indexes":       indexes,
		"memory_driver": s.store.Driver(),
	}
}

// handleCallback verifies and parses a webhook delivery, then hands its
// events to the dispatcher in the background. The platform expects a fast 200
// regardless of how long answering takes; reply tokens do the rest. Events
// within one delivery run sequentially: the platform delivers a conversation's
// events in order, and a selection followed by a question in the same batch
// must take effect in that order.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "could not read request body")
		return
	}
	defer r.Body.Close()

	if !channel.ValidSignature(s.cfg.ChannelSecret, body, r.Header.Get(channel.SignatureHeader)) {
		respondError(w, http.StatusBadRequest, "invalid_signature", "signature verification failed")
		return
	}

	events, err := channel.ParseWebhook(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}

	deliveryID := uuid.NewString()
	if len(events) > 0 {
		go func() {
			for _, ev := range events {
				s.dispatcher.HandleEvent(context.Background(), ev)
			}
		}()
		log.Printf("httpapi: accepted %d webhook event(s), delivery %s", len(events), deliveryID)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
