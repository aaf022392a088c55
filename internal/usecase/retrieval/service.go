// Package retrieval ranks index candidates with dense, BM25 and fuzzy signals.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/request"
	logpkg "github.com/santoshnarayanan/sda/internal/logger"
	"github.com/santoshnarayanan/sda/internal/metrics"
)

// Candidate pool limits.
const (
	DefaultCandidateMultiplier = 3
	MaxCandidates              = 100
)

// Service runs hybrid retrieval against one index.
type Service struct {
	index      Index
	embed      Embedder
	dense      Scorer
	lexical    Scorer
	fuzzy      Scorer
	multiplier int
	logger     *zap.Logger
}

// New creates a retrieval service. multiplier <= 0 uses DefaultCandidateMultiplier.
func New(index Index, embed Embedder, multiplier int, logger *zap.Logger) *Service {
	if multiplier <= 0 {
		multiplier = DefaultCandidateMultiplier
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		index:      index,
		embed:      embed,
		dense:      DenseScorer{},
		lexical:    NewBM25Scorer(),
		fuzzy:      FuzzyScorer{},
		multiplier: multiplier,
		logger:     logger,
	}
}

// WithScorers replaces the rerank signals. Nil arguments keep the current scorer.
func (s *Service) WithScorers(dense, lexical, fuzzy Scorer) *Service {
	if dense != nil {
		s.dense = dense
	}
	if lexical != nil {
		s.lexical = lexical
	}
	if fuzzy != nil {
		s.fuzzy = fuzzy
	}
	return s
}

// candidates returns how many neighbours to fetch for a query.
func (s *Service) candidates(q request.Query) int {
	if !q.Rerank() {
		return q.TopK()
	}
	return min(q.TopK()*s.multiplier, MaxCandidates)
}

// Retrieve returns at most q.TopK() chunks ranked by combined score.
func (s *Service) Retrieve(ctx context.Context, collection string, q request.Query) ([]domain.ScoredChunk, error) {
	if q.TopK() < request.MinTopK {
		return nil, fmt.Errorf("%w: top_k must be at least %d", domain.ErrInvalidQuery, request.MinTopK)
	}
	start := time.Now()

	vector, err := s.embed.EmbedOne(ctx, q.Text())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.Search(ctx, collection, vector, s.candidates(q), q.Filters())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	metrics.RetrievalCandidates.Observe(float64(len(hits)))

	// candidates enter the rerank in dense order so the stable sort breaks ties by dense rank
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	var ranked []domain.ScoredChunk
	if q.Rerank() {
		ranked = s.rerank(q.Text(), hits)
	} else {
		ranked = denseOnly(hits)
	}
	if len(ranked) > q.TopK() {
		ranked = ranked[:q.TopK()]
	}

	elapsed := time.Since(start)
	metrics.RetrievalDuration.WithLabelValues(strconv.FormatBool(q.Rerank())).Observe(elapsed.Seconds())
	logpkg.From(ctx, s.logger).Debug("retrieval finished",
		zap.String("collection", collection),
		zap.Int("candidates", len(hits)),
		zap.Int("returned", len(ranked)),
		zap.Bool("rerank", q.Rerank()),
		zap.Duration("duration", elapsed),
	)
	return ranked, nil
}

func denseOnly(hits []domain.Hit) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		out[i] = chunkOf(h)
		out[i].CombinedScore = h.Score
	}
	return out
}

func (s *Service) rerank(query string, hits []domain.Hit) []domain.ScoredChunk {
	if len(hits) == 0 {
		return []domain.ScoredChunk{}
	}

	dense := s.dense.Score(query, hits)
	lexical := s.lexical.Score(query, hits)
	fuzzy := s.fuzzy.Score(query, hits)
	nd, nl, nf := MinMax(dense), MinMax(lexical), MinMax(fuzzy)

	out := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		c := chunkOf(h)
		c.DenseScore = dense[i]
		c.LexicalScore = lexical[i]
		c.FuzzyScore = fuzzy[i]
		c.CombinedScore = Combine(nd[i], nl[i], nf[i])
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CombinedScore > out[j].CombinedScore })
	return out
}

// chunkOf copies a hit. Backends fill missing payload fields on read, so an empty source means no payload at all.
func chunkOf(h domain.Hit) domain.ScoredChunk {
	c := domain.ScoredChunk{
		ID:         h.ID,
		Text:       h.Payload.Text,
		Source:     h.Payload.Source,
		ChunkID:    h.Payload.ChunkID,
		DenseScore: h.Score,
	}
	if c.Source == "" {
		c.Source = domain.UnknownSource
		c.ChunkID = domain.UnknownChunkID
	}
	return c
}
