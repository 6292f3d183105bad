// Package chi exposes the question answering and search API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/kailas-cloud/billsearch/internal/domain"
	"github.com/kailas-cloud/billsearch/internal/domain/search/hit"
	"github.com/kailas-cloud/billsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/billsearch/internal/domain/search/request"
	"github.com/kailas-cloud/billsearch/internal/logger"
	answeruc "github.com/kailas-cloud/billsearch/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/billsearch/internal/usecase/health"
	profileuc "github.com/kailas-cloud/billsearch/internal/usecase/profile"
	"github.com/kailas-cloud/billsearch/internal/usecase/rank"
	retrieveuc "github.com/kailas-cloud/billsearch/internal/usecase/retrieve"
)

const maxBodyBytes = 1 << 20

// Gate is the readiness view the handlers need.
type Gate interface {
	State() (domain.ReadinessState, error)
	EnsureReady() error
}

// Server serves the HTTP API.
type Server struct {
	gate          Gate
	retriever     *retrieveuc.Service
	answers       *answeruc.Service
	profiles      *profileuc.Service
	health        *healthuc.Service
	queries       *semaphore.Weighted
	strict        bool
	now           func() time.Time
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. maxConcurrent caps in-flight query work.
func NewServer(
	gate Gate,
	retriever *retrieveuc.Service,
	answers *answeruc.Service,
	profiles *profileuc.Service,
	health *healthuc.Service,
	maxConcurrent int,
	logger *zap.Logger,
) *Server {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Server{
		gate:          gate,
		retriever:     retriever,
		answers:       answers,
		profiles:      profiles,
		health:        health,
		queries:       semaphore.NewWeighted(int64(maxConcurrent)),
		strict:        true,
		now:           time.Now,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// WithStrictState controls whether readiness is reported before request errors.
func (s *Server) WithStrictState(strict bool) *Server {
	s.strict = strict
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(s.limitQueries)
		r.Post("/ask", s.Ask)
		r.Get("/ask/stream", s.AskStream)
		r.Get("/search", s.Search)
	})
	r.Post("/onboarding", s.Onboarding)
	r.Get("/health", s.HealthCheck)
	r.Get("/ready", s.Ready)
	r.Get("/metrics", s.Metrics)
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	if !s.readyFirst(w) {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	sc, ok := s.scopeFor(ctx, w, req.State, req.SessionID)
	if !ok {
		return
	}
	if answeruc.IsGreeting(req.Question) {
		if s.greetingAllowed(ctx, w) {
			writeJSON(w, http.StatusOK, AskResponse{
				Answer:    sc.greeting(),
				Citations: []int64{},
				Retrieved: []SearchHit{},
			})
		}
		return
	}

	hits, ok := s.retrieveForQuestion(ctx, w, req.Question, req.K, req.Mode, req.State, sc)
	if !ok {
		return
	}

	a, err := s.answers.InState(sc.state).Synthesize(ctx, req.Question, hits)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, AskResponse{
		Answer:    a.Text,
		Citations: a.Citations,
		Retrieved: hitsToDTO(hits),
	})
}

// AskStream handles GET /ask/stream. The answer is streamed as plain text and
// terminated by a sources marker line, or by an error marker when generation fails
// after text was sent.
func (s *Server) AskStream(w http.ResponseWriter, r *http.Request) {
	if !s.readyFirst(w) {
		return
	}

	var p AskStreamParams
	if err := bindQuery(r, map[string]any{
		"q": &p.Q, "k": &p.K, "session_id": &p.SessionID, "mode": &p.Mode, "state": &p.State,
	}); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	question := deref(p.Q)
	sc, ok := s.scopeFor(ctx, w, p.State, p.SessionID)
	if !ok {
		return
	}
	sw := newStreamWriter(w, usage)
	if answeruc.IsGreeting(question) {
		if !s.greetingAllowed(ctx, w) {
			return
		}
		if err := sw.write(sc.greeting()); err != nil {
			logger.FromContext(ctx).Warn("Write greeting", zap.Error(err))
			return
		}
		if err := sw.finish([]SearchHit{}); err != nil {
			logger.FromContext(ctx).Warn("Write stream sources", zap.Error(err))
		}
		return
	}

	hits, ok := s.retrieveForQuestion(ctx, w, question, p.K, p.Mode, p.State, sc)
	if !ok {
		return
	}

	_, err := s.answers.InState(sc.state).Stream(ctx, question, hits, sw.write)
	if err != nil {
		if !sw.started {
			s.handleDomainError(ctx, w, err)
			return
		}
		if ctx.Err() != nil {
			logger.FromContext(ctx).Warn("Answer stream aborted", zap.Error(err))
			return
		}
		if ferr := sw.fail(s.reply(ctx, err)); ferr != nil {
			logger.FromContext(ctx).Warn("Answer stream aborted", zap.Error(err), zap.NamedError("write_error", ferr))
		}
		return
	}
	if err := sw.finish(hitsToDTO(hits)); err != nil {
		logger.FromContext(ctx).Warn("Write stream sources", zap.Error(err))
	}
}

// Search handles GET /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	if !s.readyFirst(w) {
		return
	}

	var p SearchParams
	if err := bindQuery(r, map[string]any{
		"q": &p.Q, "top_k": &p.TopK, "mode": &p.Mode, "state": &p.State,
	}); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	hits, err := s.retriever.Retrieve(ctx, s.query(deref(p.Q), p.TopK, p.Mode, p.State))
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{Items: hitsToDTO(hits)})
}

// Onboarding handles POST /onboarding.
func (s *Server) Onboarding(w http.ResponseWriter, r *http.Request) {
	var req OnboardingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, KindBadRequest, "Invalid request body: "+err.Error())
		return
	}

	id, err := s.profiles.Save(r.Context(), req.toProfile())
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, OnboardingResponse{SessionID: id})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		State:  report.State.String(),
		Checks: checks,
	})
}

// Ready handles GET /ready.
func (s *Server) Ready(w http.ResponseWriter, _ *http.Request) {
	state, cause := s.gate.State()
	resp := ReadyResponse{State: state.String()}
	if cause != nil {
		resp.Error = cause.Error()
	}
	if state != domain.StateReady {
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// askScope is the asking company's context: its profile, if any, and the
// jurisdiction the answer is about.
type askScope struct {
	profile *profileuc.Profile
	state   string
}

func (sc askScope) greeting() string {
	if sc.profile == nil {
		return answeruc.GreetingReply(sc.state, "")
	}
	return answeruc.GreetingReply(sc.state, sc.profile.Industry)
}

// scopeFor loads the session profile. The request state wins over the profile state.
// It writes the error reply itself and reports whether the caller may continue.
func (s *Server) scopeFor(ctx context.Context, w http.ResponseWriter, state, sessionID *string) (askScope, bool) {
	sc := askScope{state: strings.TrimSpace(deref(state))}
	id := deref(sessionID)
	if id == "" {
		return sc, true
	}
	p, err := s.profiles.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, KindNotFound, "unknown session_id")
		return askScope{}, false
	}
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return askScope{}, false
	}
	sc.profile = &p
	if sc.state == "" {
		sc.state = p.State
	}
	return sc, true
}

// greetingAllowed keeps small talk behind the readiness gate in both modes.
func (s *Server) greetingAllowed(ctx context.Context, w http.ResponseWriter) bool {
	if err := s.gate.EnsureReady(); err != nil {
		s.handleDomainError(ctx, w, err)
		return false
	}
	return true
}

// retrieveForQuestion retrieves with the augmented question and re-ranks for the
// session profile. It writes the error reply itself and reports whether the caller
// may continue.
func (s *Server) retrieveForQuestion(
	ctx context.Context, w http.ResponseWriter,
	question string, k *int, m, state *string, sc askScope,
) ([]hit.Hit, bool) {
	text := answeruc.AugmentQuery(question, sc.state)
	if utf8.RuneCountInString(text) > request.MaxQueryLength {
		text = question
	}

	hits, err := s.retriever.Retrieve(ctx, s.query(text, k, m, state))
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return nil, false
	}

	if sc.profile != nil {
		hits = rank.Rerank(hits, rank.PreferencesFor(sc.profile.State, sc.profile.Categories, question), s.now())
	}
	return hits, true
}

func (s *Server) query(text string, k *int, m, state *string) retrieveuc.Query {
	topK := s.retriever.Limits().DefaultK
	if k != nil {
		topK = *k
	}
	return retrieveuc.Query{
		Text:  text,
		K:     topK,
		Mode:  mode.Mode(deref(m)),
		State: deref(state),
	}
}

// readyFirst reports not_ready before any request error in strict mode.
func (s *Server) readyFirst(w http.ResponseWriter) bool {
	if !s.strict {
		return true
	}
	if err := s.gate.EnsureReady(); err != nil {
		reply, _ := replyFor(s.errorHandlers, err)
		reply.write(w)
		return false
	}
	return true
}

// limitQueries caps concurrent query work. Waiting honors the request context.
func (s *Server) limitQueries(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.queries.Acquire(r.Context(), 1); err != nil {
			writeError(w, http.StatusGatewayTimeout, KindTimeout, "timed out waiting for a query slot")
			return
		}
		defer s.queries.Release(1)
		next.ServeHTTP(w, r)
	})
}

func bindQuery(r *http.Request, params map[string]any) error {
	q := r.URL.Query()
	for name, dest := range params {
		if err := runtime.BindQueryParameter("form", true, false, name, q, dest); err != nil {
			return err //nolint:wrapcheck // message is already parameter specific
		}
	}
	return nil
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage == nil {
		return
	}
	if usage.Embedded {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
	if usage.Generated {
		w.Header().Set("X-Generation-Tokens", strconv.Itoa(usage.GenerationTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind ErrorKind, message string) {
	writeJSON(w, status, ErrorResponse{Kind: kind, Message: message})
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	s.reply(ctx, err).write(w)
}

func (s *Server) reply(ctx context.Context, err error) errorReply {
	log := logger.FromContext(ctx)
	log.Warn("domain error", zap.Error(err))
	r, known := replyFor(s.errorHandlers, err)
	if !known {
		log.Error("internal error", zap.Error(err))
	}
	return r
}
