// Package chi exposes ingestion, retrieval and answering over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/santoshnarayanan/sda/internal/corpus"
	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
	"github.com/santoshnarayanan/sda/internal/domain/search/request"
	logpkg "github.com/santoshnarayanan/sda/internal/logger"
	"github.com/santoshnarayanan/sda/internal/metrics"
	"github.com/santoshnarayanan/sda/internal/usecase/answer"
	"github.com/santoshnarayanan/sda/internal/usecase/assembler"
	healthuc "github.com/santoshnarayanan/sda/internal/usecase/health"
	ingestuc "github.com/santoshnarayanan/sda/internal/usecase/ingest"
	"github.com/santoshnarayanan/sda/internal/usecase/retrieval"
)

// Error codes.
const (
	codeBadRequest            = "bad_request"
	codeInvalidQuery          = "invalid_query"
	codeInvalidFilter         = "invalid_filter"
	codeInvalidCollectionName = "invalid_collection_name"
	codeInvalidDocument       = "invalid_document"
	codeCollectionNotFound    = "collection_not_found"
	codeCollectionExists      = "collection_already_exists"
	codeDimensionMismatch     = "dimension_mismatch"
	codeEmbeddingProvider     = "embedding_provider_error"
	codeIndexUnavailable      = "index_unavailable"
	codeInternal              = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Options carries request defaults.
type Options struct {
	DefaultTopK    int
	MaxChunks      int
	MaxUploadBytes int64
}

// Server serves the HTTP API.
type Server struct {
	ingest        *ingestuc.Service
	retrieval     *retrieval.Service
	answer        *answer.Service
	health        *healthuc.Service
	opts          Options
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest *ingestuc.Service,
	retrieval *retrieval.Service,
	answer *answer.Service,
	health *healthuc.Service,
	opts Options,
	logger *zap.Logger,
) *Server {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = assembler.DefaultMaxChunks
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingest:    ingest,
		retrieval: retrieval,
		answer:    answer,
		health:    health,
		opts:      opts,
		logger:    logger,
	}
	// input errors carry their detail; everything else only its sentinel message
	s.errorHandlers = []errorHandler{
		detailHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidQuery),
		detailHandler(domain.ErrInvalidFilter, http.StatusBadRequest, codeInvalidFilter),
		detailHandler(domain.ErrInvalidCollectionName, http.StatusBadRequest, codeInvalidCollectionName),
		detailHandler(domain.ErrInvalidDocument, http.StatusBadRequest, codeInvalidDocument),
		sentinelHandler(domain.ErrCollectionNotFound, http.StatusNotFound, codeCollectionNotFound),
		detailHandler(domain.ErrDimensionMismatch, http.StatusConflict, codeDimensionMismatch),
		sentinelHandler(domain.ErrCollectionExists, http.StatusConflict, codeCollectionExists),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
	}
	return s
}

// Handler builds the router with the middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Route("/v1", func(r chi.Router) {
		r.Use(EmbeddingUsage)
		r.Post("/ingest", s.Ingest)
		r.Post("/projects/ingest", s.IngestProject)
		r.Post("/query", s.Query)
		r.Post("/answer", s.Answer)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

// Ingest handles POST /v1/ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, codeInvalidDocument, "documents must not be empty")
		return
	}

	docs := make(corpus.Documents, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = domain.Document{Text: d.Text, Source: d.Source, Doctype: d.Doctype, Tags: d.Tags}
	}

	rep, err := s.ingest.Ingest(r.Context(), docs, ingestuc.Request{
		Collection: req.CollectionName,
		Recreate:   req.Recreate,
		Tags:       req.Tags,
		Owner:      req.Owner,
		Session:    req.SessionID,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportToResponse("", rep))
}

// IngestProject handles POST /v1/projects/ingest (multipart: owner, project, shard, file).
func (s *Server) IngestProject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "file is required")
		return
	}
	defer file.Close()

	archive, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "read upload: "+err.Error())
		return
	}

	shard, _ := strconv.ParseBool(r.FormValue("shard"))
	rep, err := s.ingest.IngestProject(r.Context(), r.FormValue("owner"), r.FormValue("project"), archive, shard)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportToResponse(rep.Collection, rep.Report))
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	q, err := s.queryFromRequest(req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ranked, err := s.retrieval.Retrieve(r.Context(), req.CollectionName, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contextToResponse(assembler.Assemble(ranked, s.opts.MaxChunks)))
}

// Answer handles POST /v1/answer.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !s.decode(w, r, &req) {
		return
	}
	q, err := s.queryFromRequest(req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ans, err := s.answer.Answer(r.Context(), req.CollectionName, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{
		QueryResponse:    contextToResponse(ans.Context),
		Status:           string(ans.Result.Status()),
		GeneratedContent: ans.Result.Content(),
		FailureReason:    ans.Result.Reason(),
		ContentLanguage:  ans.Language,
	})
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
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) queryFromRequest(req QueryRequest) (request.Query, error) {
	if err := domain.ValidateCollectionName(req.CollectionName); err != nil {
		return request.Query{}, err
	}
	expr, err := filter.FromScalars(req.Filters)
	if err != nil {
		return request.Query{}, fmt.Errorf("%w: %w", domain.ErrInvalidFilter, err)
	}
	topK := s.opts.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	rerank := true
	if req.Rerank != nil {
		rerank = *req.Rerank
	}
	return request.New(req.PromptText, topK, rerank, expr, req.ContentLanguageHint)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func reportToResponse(collection string, rep ingestuc.Report) IngestResponse {
	skipped := make([]SkippedFile, len(rep.Skipped))
	for i, sk := range rep.Skipped {
		skipped[i] = SkippedFile{Source: sk.Source, Reason: sk.Reason}
	}
	return IngestResponse{
		CollectionName: collection,
		FilesSeen:      rep.FilesSeen,
		FilesIndexed:   rep.FilesIndexed,
		ChunksIndexed:  rep.ChunksIndexed,
		Skipped:        skipped,
	}
}

func contextToResponse(c assembler.Context) QueryResponse {
	sources := make([]SourceItem, len(c.Sources))
	for i, src := range c.Sources {
		sources[i] = SourceItem{Source: src.Source, ChunkID: src.ChunkID, Score: src.Score, Snippet: src.Snippet}
	}
	return QueryResponse{ContextText: c.Text, Sources: sources}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler answers with the sentinel's own message, hiding wrapped internals.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// detailHandler answers with the innermost message that still names the sentinel.
func detailHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, detail(err, sentinel))
		return true
	}
}

// detail strips the "op: " prefixes added by outer layers.
func detail(err, sentinel error) string {
	msg := err.Error()
	if i := strings.Index(msg, sentinel.Error()); i > 0 {
		return msg[i:]
	}
	return msg
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.From(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}
