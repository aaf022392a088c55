// Package answer runs one retrieve, assemble and generate cycle per query.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/generation"
	"github.com/santoshnarayanan/sda/internal/domain/search/request"
	logpkg "github.com/santoshnarayanan/sda/internal/logger"
	"github.com/santoshnarayanan/sda/internal/metrics"
	"github.com/santoshnarayanan/sda/internal/usecase/assembler"
)

// SystemPrompt instructs the generator to ground its answer in the supplied context.
const SystemPrompt = `You are a developer assistant. Give accurate code, documentation and technical guidance for the request.

When the request concerns a specific API, policy or project detail, you must use the provided context.
For general programming questions use general knowledge, in the style of the retrieved documents.

Format code in Markdown code blocks.`

// Content languages reported with an answer.
const (
	LanguagePython   = "python"
	LanguageJSX      = "jsx"
	LanguageMarkdown = "markdown"
)

// Failure reasons reported to callers. Provider error text stays in the logs.
const (
	ReasonGenerationFailed   = "generation request failed"
	ReasonGenerationTimedOut = "generation timed out"
)

// Answer is the assembled context and the generation outcome.
type Answer struct {
	Context  assembler.Context
	Result   generation.Result
	Language string
}

// Service answers queries. A nil generator is allowed; answers then carry a failed result.
type Service struct {
	retriever Retriever
	generator Generator
	maxChunks int
	logger    *zap.Logger
}

// New creates an answer service.
func New(retriever Retriever, generator Generator, maxChunks int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: retriever, generator: generator, maxChunks: maxChunks, logger: logger}
}

// Answer retrieves context for q and asks the generator once. Retrieval errors are returned;
// generation errors are reported in the result.
func (s *Service) Answer(ctx context.Context, collection string, q request.Query) (Answer, error) {
	ranked, err := s.retriever.Retrieve(ctx, collection, q)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	out := Answer{
		Context:  assembler.Assemble(ranked, s.maxChunks),
		Language: DetectLanguage(q.LanguageHint(), q.Text()),
	}
	out.Result = s.generate(ctx, collection, out.Context.Text, q.Text())
	metrics.GenerationTotal.WithLabelValues(string(out.Result.Status())).Inc()
	return out, nil
}

func (s *Service) generate(ctx context.Context, collection, contextText, prompt string) generation.Result {
	if s.generator == nil {
		return generation.Failed(domain.ErrGenerationUnavailable.Error())
	}
	content, err := s.generator.Generate(ctx, SystemPrompt, BuildPrompt(contextText, prompt))
	if err != nil {
		logpkg.From(ctx, s.logger).Warn("generation failed", zap.String("collection", collection), zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			return generation.Failed(ReasonGenerationTimedOut)
		}
		return generation.Failed(ReasonGenerationFailed)
	}
	return generation.Ok(content)
}

// BuildPrompt frames the retrieved context and the user request.
func BuildPrompt(contextText, prompt string) string {
	return "Context from documents:\n---\n" + contextText + "\n---\nUser Request: " + prompt
}

// DetectLanguage guesses the content language from the caller's hint and the prompt.
func DetectLanguage(hint, prompt string) string {
	hint = strings.ToLower(hint)
	switch {
	case strings.Contains(hint, "python") || strings.Contains(strings.ToLower(prompt), "python"):
		return LanguagePython
	case strings.Contains(hint, "react") || strings.Contains(hint, "javascript"):
		return LanguageJSX
	default:
		return LanguageMarkdown
	}
}
