package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/santoshnarayanan/sda/internal/domain"
)

// probeText is embedded once to learn the output width when it is not configured.
const probeText = "dimension probe"

// Factory builds the provider chain. It is called at most once per Service.
type Factory func() (domain.Embedder, error)

// Options configures a Service.
type Options struct {
	// Dimensions is the expected output width; 0 means probe the provider once.
	Dimensions          int
	DocumentInstruction string
	QueryInstruction    string
}

// Service is the process-wide embedder: the backend is built lazily on first use,
// a construction error is remembered, and every vector is checked against one width.
type Service struct {
	factory Factory
	opts    Options

	once    sync.Once
	backend domain.Embedder
	query   *domain.InstructionEmbedder
	doc     *domain.InstructionEmbedder
	initErr error

	mu  sync.Mutex
	dim int
}

// NewService creates a lazily initialised embedding service.
func NewService(factory Factory, opts Options) *Service {
	return &Service{factory: factory, opts: opts, dim: opts.Dimensions}
}

func (s *Service) init() error {
	s.once.Do(func() {
		be, err := s.factory()
		if err != nil {
			s.initErr = fmt.Errorf("init embedder: %w", err)
			return
		}
		s.backend = be
		s.query = domain.NewInstructionEmbedder(be, s.opts.QueryInstruction)
		s.doc = domain.NewInstructionEmbedder(be, s.opts.DocumentInstruction)
	})
	return s.initErr
}

// Dimension returns the output width, probing the provider once when it is not configured.
func (s *Service) Dimension(ctx context.Context) (int, error) {
	if d := s.knownDim(); d > 0 {
		return d, nil
	}
	if err := s.init(); err != nil {
		return 0, err
	}
	if d, ok := s.backend.(domain.Dimensioner); ok && d.Dimension() > 0 {
		return s.learnDim(d.Dimension()), nil
	}

	res, err := s.backend.Embed(ctx, probeText)
	if err != nil {
		return 0, fmt.Errorf("probe dimension: %w", err)
	}
	if len(res.Embedding) == 0 {
		return 0, fmt.Errorf("probe dimension: empty vector: %w", domain.ErrEmbeddingProviderError)
	}
	return s.learnDim(len(res.Embedding)), nil
}

// EmbedOne embeds a query text.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	res, err := s.query.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.check(len(res.Embedding)); err != nil {
		return nil, err
	}
	return res.Embedding, nil
}

// EmbedMany embeds document texts through the provider's batch API. Output order follows input order.
func (s *Service) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	res, err := s.doc.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(texts), len(res.Embeddings), domain.ErrEmbeddingProviderError)
	}
	for _, v := range res.Embeddings {
		if err := s.check(len(v)); err != nil {
			return nil, err
		}
	}
	return res.Embeddings, nil
}

// HealthCheck verifies the provider when it supports health checks.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.init(); err != nil {
		return err
	}
	if hc, ok := s.backend.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (s *Service) knownDim() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dim
}

func (s *Service) learnDim(d int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim == 0 {
		s.dim = d
	}
	return s.dim
}

// check compares a vector width with the known dimension, adopting it when none is known yet.
func (s *Service) check(got int) error {
	if got == 0 {
		return fmt.Errorf("empty vector: %w", domain.ErrEmbeddingProviderError)
	}
	if want := s.learnDim(got); want != got {
		return domain.NewDimensionMismatch("", want, got)
	}
	return nil
}
