package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/santoshnarayanan/sda/internal/domain"
	"github.com/santoshnarayanan/sda/internal/domain/search/filter"
)

// Repo implements the Repository, PointWriter and Searcher contracts of usecase/collection.
type Repo struct {
	c *Client
}

// New creates a Qdrant repository.
func New(c *Client) *Repo {
	return &Repo{c: c}
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

// Create creates a cosine collection.
func (r *Repo) Create(ctx context.Context, col domain.Collection) error {
	body := map[string]any{
		"vectors": vectorParams{Size: col.VectorSize, Distance: "Cosine"},
	}
	if err := r.c.do(ctx, http.MethodPut, collectionPath(col.Name), body, nil); err != nil {
		if errors.Is(err, domain.ErrCollectionExists) {
			return domain.ErrCollectionExists
		}
		return fmt.Errorf("create collection %s: %w", col.Name, err)
	}
	return nil
}

// Get describes a collection. Qdrant filters on any payload field, so FilterFields stays nil.
func (r *Repo) Get(ctx context.Context, name string) (domain.Collection, error) {
	var info struct {
		Config struct {
			Params struct {
				Vectors vectorParams `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := r.c.do(ctx, http.MethodGet, collectionPath(name), nil, &info); err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return domain.Collection{}, domain.ErrCollectionNotFound
		}
		return domain.Collection{}, fmt.Errorf("get collection %s: %w", name, err)
	}
	if info.Config.Params.Vectors.Size <= 0 {
		return domain.Collection{}, fmt.Errorf("collection %s: unnamed vector config missing", name)
	}
	return domain.Collection{
		Name:       name,
		VectorSize: info.Config.Params.Vectors.Size,
		Distance:   domain.DistanceCosine,
	}, nil
}

// Delete drops a collection.
func (r *Repo) Delete(ctx context.Context, name string) error {
	var deleted bool
	if err := r.c.do(ctx, http.MethodDelete, collectionPath(name), nil, &deleted); err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return domain.ErrCollectionNotFound
		}
		return fmt.Errorf("delete collection %s: %w", name, err)
	}
	if !deleted {
		return domain.ErrCollectionNotFound
	}
	return nil
}

type point struct {
	ID      any            `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes the batch in one request and waits until it is applied.
func (r *Repo) Upsert(ctx context.Context, col domain.Collection, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}
	body := struct {
		Points []point `json:"points"`
	}{Points: make([]point, 0, len(points))}

	for i := range points {
		p := &points[i]
		if p.ID == "" {
			return fmt.Errorf("%w: point %d has no id", domain.ErrInvalidDocument, i)
		}
		body.Points = append(body.Points, point{
			ID:      pointID(p.ID),
			Vector:  p.Vector,
			Payload: toPayload(p.Payload),
		})
	}

	if err := r.c.do(ctx, http.MethodPut, collectionPath(col.Name)+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("upsert %d points into %s: %w", len(points), col.Name, err)
	}
	return nil
}

// Count returns the exact number of points in a collection.
func (r *Repo) Count(ctx context.Context, name string) (int, error) {
	var res struct {
		Count int `json:"count"`
	}
	if err := r.c.do(ctx, http.MethodPost, collectionPath(name)+"/points/count", map[string]bool{"exact": true}, &res); err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return 0, domain.ErrCollectionNotFound
		}
		return 0, fmt.Errorf("count %s: %w", name, err)
	}
	return res.Count, nil
}

type scoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// Search returns the k nearest points; equality filters become must/match conditions.
func (r *Repo) Search(
	ctx context.Context, col domain.Collection, vector []float32, k int, filters filter.Expression,
) ([]domain.Hit, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	f, err := buildFilter(filters)
	if err != nil {
		return nil, err
	}
	if f != nil {
		body["filter"] = f
	}

	var res []scoredPoint
	if err := r.c.do(ctx, http.MethodPost, collectionPath(col.Name)+"/points/search", body, &res); err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return nil, domain.ErrCollectionNotFound
		}
		return nil, fmt.Errorf("search %s: %w", col.Name, err)
	}

	hits := make([]domain.Hit, 0, len(res))
	for _, sp := range res {
		hits = append(hits, domain.Hit{
			ID:      rawID(sp.ID),
			Score:   clamp(sp.Score),
			Payload: domain.PayloadFromFields(fromPayload(sp.Payload)),
		})
	}
	return hits, nil
}

// rawID renders a Qdrant id, a JSON number or string, without quotes.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// buildFilter matches each value with the type it was stored under: chunk_id is an integer
// payload field, everything else is a string.
func buildFilter(e filter.Expression) (map[string]any, error) {
	if e.IsEmpty() {
		return nil, nil
	}
	must := make([]map[string]any, 0, len(e.Must()))
	for _, c := range e.Must() {
		var value any = c.Value()
		if c.Key() == domain.PayloadChunkID {
			n, err := strconv.Atoi(c.Value())
			if err != nil {
				return nil, fmt.Errorf("%w: chunk_id must be an integer, got %q", domain.ErrInvalidFilter, c.Value())
			}
			value = n
		}
		must = append(must, map[string]any{
			"key":   c.Key(),
			"match": map[string]any{"value": value},
		})
	}
	return map[string]any{"must": must}, nil
}

// pointID maps a point id onto the two id kinds Qdrant accepts: unsigned integers and UUIDs.
// Any other string is replaced by its UUIDv5.
func pointID(id string) any {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func toPayload(p domain.Payload) map[string]any {
	m := make(map[string]any, len(p.Tags)+4)
	for k, v := range p.Tags {
		m[k] = v
	}
	m[domain.PayloadText] = p.Text
	m[domain.PayloadSource] = p.Source
	m[domain.PayloadFileExt] = p.FileExt
	m[domain.PayloadChunkID] = p.ChunkID
	return m
}

func fromPayload(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case string:
			out[k] = x
		case float64:
			out[k] = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(x)
		case nil:
		default:
			out[k] = fmt.Sprint(x)
		}
	}
	return out
}

func clamp(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
