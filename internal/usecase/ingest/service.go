package ingest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/santoshnarayanan/sda/internal/chunker"
	"github.com/santoshnarayanan/sda/internal/corpus"
	"github.com/santoshnarayanan/sda/internal/domain"
	logpkg "github.com/santoshnarayanan/sda/internal/logger"
	"github.com/santoshnarayanan/sda/internal/metrics"
)

// Namespaces of ingested content.
const (
	NamespaceDocs = "docs"
	NamespaceChat = "chat"
)

// Payload tag keys added by ingestion.
const (
	TagNamespace = "namespace"
	TagOwner     = "owner"
	TagSession   = "session_id"
	TagDoctype   = "doctype"
)

// chatSplitThreshold is the turn length, in characters, above which a chat turn is split.
const chatSplitThreshold = 450

// Defaults for Options.
const (
	DefaultBatchSize = 64
	DefaultWorkers   = 4
)

// IDMode selects how point ids are assigned.
type IDMode int

const (
	// IDContent derives ids from content, so re-ingesting unchanged content overwrites the same points.
	IDContent IDMode = iota
	// IDSequential numbers points 0, 1, 2... in enumeration order.
	IDSequential
)

// Request describes one ingestion run.
type Request struct {
	Collection string
	Recreate   bool
	Tags       map[string]string
	// Namespace overrides the per-document namespace (docs, or chat for chat turns).
	Namespace string
	Owner     string
	Session   string
	IDMode    IDMode
}

// Skip records an entry that was not indexed.
type Skip struct {
	Source string
	Reason string
}

// Report counts the outcome of a run. On error it reflects the work done before the failure.
type Report struct {
	FilesSeen     int
	FilesIndexed  int
	ChunksIndexed int
	Skipped       []Skip
}

// Options tune batching.
type Options struct {
	BatchSize    int
	Workers      int
	MaxFileBytes int64
}

// Service chunks, embeds and writes corpus entries into a collection.
type Service struct {
	index  Index
	embed  Embedder
	docs   *chunker.Splitter
	chat   *chunker.Splitter
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// New creates an ingestion service. docs and chat are the document and chat-turn splitters.
func New(index Index, embed Embedder, docs, chat *chunker.Splitter, opts Options, logger *zap.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = corpus.DefaultMaxFileBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		index:  index,
		embed:  embed,
		docs:   docs,
		chat:   chat,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

type pending struct {
	id      string
	text    string
	payload domain.Payload
}

// run holds the mutable state of one Ingest call.
type run struct {
	mu      sync.Mutex
	report  Report
	chunks  atomic.Int64
	nextSeq int
}

func (r *run) skip(source, reason string) {
	r.mu.Lock()
	r.report.Skipped = append(r.report.Skipped, Skip{Source: source, Reason: reason})
	r.mu.Unlock()
	metrics.IngestFilesTotal.WithLabelValues("skipped").Inc()
}

func (r *run) snapshot() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := r.report
	rep.ChunksIndexed = int(r.chunks.Load())
	return rep
}

// Ingest enumerates src and writes every indexable entry into req.Collection.
// The collection is ensured with the embedder's dimension before the first write.
func (s *Service) Ingest(ctx context.Context, src corpus.Source, req Request) (Report, error) {
	if err := domain.ValidateCollectionName(req.Collection); err != nil {
		return Report{}, err
	}

	start := time.Now()
	dim, err := s.embed.Dimension(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("embedding dimension: %w", err)
	}
	if _, err := s.index.EnsureCollection(ctx, req.Collection, dim, req.Recreate); err != nil {
		return Report{}, fmt.Errorf("ensure collection: %w", err)
	}

	st := &run{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	batch := make([]pending, 0, s.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		items := batch
		batch = make([]pending, 0, s.opts.BatchSize)
		g.Go(func() error {
			return s.write(gctx, req.Collection, items, st)
		})
	}

	walkErr := src.Walk(gctx, func(e corpus.Entry) error {
		st.mu.Lock()
		st.report.FilesSeen++
		st.mu.Unlock()

		if e.Skipped() {
			st.skip(e.Document.Source, e.Skip)
			return nil
		}

		texts := s.chunk(e.Document)
		if len(texts) == 0 {
			st.skip(e.Document.Source, corpus.ReasonEmpty)
			return nil
		}

		st.mu.Lock()
		st.report.FilesIndexed++
		st.mu.Unlock()
		metrics.IngestFilesTotal.WithLabelValues("indexed").Inc()

		for pos, text := range texts {
			batch = append(batch, s.point(e.Document, req, pos, text, st))
			if len(batch) >= s.opts.BatchSize {
				flush()
			}
		}
		return gctx.Err()
	})
	if walkErr == nil {
		flush()
	}
	waitErr := g.Wait()

	rep := st.snapshot()
	log := logpkg.From(ctx, s.logger).With(
		zap.String("collection", req.Collection),
		zap.Int("files_seen", rep.FilesSeen),
		zap.Int("files_indexed", rep.FilesIndexed),
		zap.Int("chunks", rep.ChunksIndexed),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Duration("duration", time.Since(start)),
	)

	// a worker failure cancels gctx, so the worker error is the cause of any walk error
	if waitErr != nil {
		log.Error("ingestion aborted", zap.Error(waitErr))
		return rep, fmt.Errorf("ingest %s: %w", req.Collection, waitErr)
	}
	if walkErr != nil {
		log.Error("ingestion aborted", zap.Error(walkErr))
		return rep, fmt.Errorf("ingest %s: %w", req.Collection, walkErr)
	}
	log.Info("ingestion finished")
	return rep, nil
}

// chunk picks the splitter for a document.
func (s *Service) chunk(doc domain.Document) []string {
	switch {
	case doc.Doctype == corpus.DoctypeChat:
		if utf8.RuneCountInString(doc.Text) > chatSplitThreshold {
			return s.chat.Split(doc.Text)
		}
		if doc.Text == "" {
			return nil
		}
		return []string{doc.Text}
	case doc.FileExt() == ".md":
		return s.docs.SplitMarkdown(doc.Text)
	default:
		return s.docs.Split(doc.Text)
	}
}

func (s *Service) point(doc domain.Document, req Request, pos int, text string, st *run) pending {
	namespace := req.Namespace
	if namespace == "" {
		namespace = NamespaceDocs
		if doc.Doctype == corpus.DoctypeChat {
			namespace = NamespaceChat
		}
	}

	tags := make(map[string]string, len(req.Tags)+len(doc.Tags)+4)
	for k, v := range req.Tags {
		tags[k] = v
	}
	for k, v := range doc.Tags {
		tags[k] = v
	}
	tags[TagNamespace] = namespace
	if req.Owner != "" {
		tags[TagOwner] = req.Owner
	}
	if req.Session != "" {
		tags[TagSession] = req.Session
	}
	if doc.Doctype != "" {
		tags[TagDoctype] = doc.Doctype
	}

	var id string
	switch req.IDMode {
	case IDSequential:
		id = strconv.Itoa(st.nextSeq)
		st.nextSeq++
	default:
		source := doc.Source
		if turn, ok := doc.Tags[corpus.TagTurn]; ok && doc.Doctype == corpus.DoctypeChat {
			source += "#" + turn
		}
		id = domain.ContentPointID(domain.IDParts{
			Namespace: namespace,
			Owner:     req.Owner,
			Session:   req.Session,
			Source:    source,
			Position:  pos,
			Text:      text,
		})
	}

	return pending{
		id:   id,
		text: text,
		payload: domain.Payload{
			Text:    text,
			Source:  doc.Source,
			FileExt: doc.FileExt(),
			ChunkID: pos,
			Tags:    tags,
		},
	}
}

// write embeds one batch and upserts it.
func (s *Service) write(ctx context.Context, collection string, items []pending, st *run) error {
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.text
	}

	vectors, err := s.embed.EmbedMany(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(items) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d chunks",
			domain.ErrEmbeddingProviderError, len(vectors), len(items))
	}

	points := make([]domain.Point, len(items))
	for i, it := range items {
		points[i] = domain.Point{ID: it.id, Vector: vectors[i], Payload: it.payload}
	}
	if err := s.index.Upsert(ctx, collection, points); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}

	st.chunks.Add(int64(len(points)))
	metrics.IngestChunksTotal.Add(float64(len(points)))
	return nil
}
