package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kotileipomo/faq-engine/internal/engine"
	"github.com/kotileipomo/faq-engine/internal/observability"
	"github.com/kotileipomo/faq-engine/internal/resolvers"
	"github.com/kotileipomo/faq-engine/internal/retrieval"
)

// maxMessageLen bounds a chat message in bytes.
const maxMessageLen = 2000

// ChatHandler serves the conversational endpoints.
type ChatHandler struct {
	logger      *observability.Logger
	engine      *engine.Engine
	defaultLang string
}

// NewChatHandler creates a new chat handler. defaultLang applies when a request names
// no language.
func NewChatHandler(logger *observability.Logger, e *engine.Engine, defaultLang string) *ChatHandler {
	return &ChatHandler{
		logger:      logger.WithComponent("api-chat"),
		engine:      e,
		defaultLang: defaultLang,
	}
}

// ChatRequestDTO represents a chat or answer request.
type ChatRequestDTO struct {
	Message string `json:"message"`
	Lang    string `json:"lang,omitempty"`
	// Debug includes the retrieval candidates in the response.
	Debug bool `json:"debug,omitempty"`
}

// ChatResponseDTO represents a chat response.
type ChatResponseDTO struct {
	RequestID  string              `json:"requestId"`
	Reply      string              `json:"reply"`
	Intent     string              `json:"intent"`
	Source     string              `json:"source"`
	Match      float64             `json:"match"`
	Ref        string              `json:"ref,omitempty"`
	Sections   []resolvers.Section `json:"sections,omitempty"`
	Buttons    []resolvers.Button  `json:"buttons,omitempty"`
	Menu       *resolvers.MenuView `json:"menu,omitempty"`
	Candidates []CandidateDTO      `json:"candidates,omitempty"`
	LatencyMs  int64               `json:"latencyMs"`
}

// CandidateDTO represents a scored knowledge base entry.
type CandidateDTO struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Source   string  `json:"source"`
	Blend    float64 `json:"blend"`
	BM25     float64 `json:"bm25"`
	Fuzzy    float64 `json:"fuzzy"`
	Jaccard  float64 `json:"jaccard"`
}

// MatchResponseDTO represents a raw retrieval result.
type MatchResponseDTO struct {
	Accepted   bool           `json:"accepted"`
	Candidates []CandidateDTO `json:"candidates"`
}

// IntentResponseDTO represents a classification result.
type IntentResponseDTO struct {
	Intent string `json:"intent"`
	Phrase string `json:"phrase,omitempty"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	resp, err := h.engine.Respond(ctx, req.Message, h.lang(req.Lang))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	dto := ChatResponseDTO{
		RequestID: observability.RequestIDFromContext(ctx),
		Reply:     resp.Reply.Text,
		Intent:    string(resp.Reply.Intent),
		Source:    string(resp.Source),
		Match:     resp.Match,
		Ref:       resp.Ref,
		Sections:  resp.Reply.Sections,
		Buttons:   resp.Reply.Buttons,
		Menu:      resp.Reply.Menu,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if req.Debug {
		dto.Candidates = toCandidateDTOs(resp.Candidates)
	}
	writeJSON(w, h.logger, http.StatusOK, dto)
}

// Answer handles POST /answer: the deterministic intent route only. It responds 404 when
// the caller should fall back to retrieval.
func (h *ChatHandler) Answer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	rep, err := h.engine.Answer(ctx, req.Message, resolvers.Lang(h.lang(req.Lang)))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ChatResponseDTO{
		RequestID: observability.RequestIDFromContext(ctx),
		Reply:     rep.Text,
		Intent:    string(rep.Intent),
		Source:    string(engine.SourceIntent),
		Match:     1,
		Sections:  rep.Sections,
		Buttons:   rep.Buttons,
		Menu:      rep.Menu,
		LatencyMs: time.Since(start).Milliseconds(),
	})
}

// Match handles GET /match?q=...&k=....
func (h *ChatHandler) Match(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required", "")
		return
	}
	k := 0
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 20 {
			writeError(w, http.StatusBadRequest, "k must be between 1 and 20", v)
			return
		}
		k = n
	}

	cands, accepted := h.engine.Match(q, k)
	writeJSON(w, h.logger, http.StatusOK, MatchResponseDTO{
		Accepted:   accepted,
		Candidates: toCandidateDTOs(cands),
	})
}

// Intent handles GET /intent?q=....
func (h *ChatHandler) Intent(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required", "")
		return
	}
	c := h.engine.Classifier()
	in := c.Detect(q)
	phrase, _ := c.MatchedPhrase(in, q)
	writeJSON(w, h.logger, http.StatusOK, IntentResponseDTO{Intent: string(in), Phrase: phrase})
}

func (h *ChatHandler) decode(w http.ResponseWriter, r *http.Request) (ChatRequestDTO, bool) {
	var req ChatRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, false
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "")
		return req, false
	}
	if len(req.Message) > maxMessageLen {
		writeError(w, http.StatusBadRequest, "message too long", strconv.Itoa(maxMessageLen)+" bytes max")
		return req, false
	}
	return req, true
}

func (h *ChatHandler) lang(requested string) string {
	if l := strings.ToLower(strings.TrimSpace(requested)); l != "" {
		return l
	}
	return h.defaultLang
}

func (h *ChatHandler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrNoDeterministicMatch):
		writeError(w, http.StatusNotFound, "no deterministic match", "")
	case errors.Is(err, engine.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, "message is required", "")
	case r.Context().Err() != nil:
		writeError(w, http.StatusServiceUnavailable, "request cancelled", err.Error())
	default:
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Query failed")
		writeError(w, http.StatusInternalServerError, "query failed", err.Error())
	}
}

func toCandidateDTOs(cands []retrieval.Candidate) []CandidateDTO {
	out := make([]CandidateDTO, 0, len(cands))
	for _, c := range cands {
		out = append(out, CandidateDTO{
			ID:       c.Entry.ID,
			Question: c.Entry.Question,
			Source:   c.Entry.Source,
			Blend:    c.Blend,
			BM25:     c.BM25,
			Fuzzy:    c.Fuzzy,
			Jaccard:  c.Jaccard,
		})
	}
	return out
}
