package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Payload keys written for every point.
const (
	PayloadText    = "text"
	PayloadSource  = "source"
	PayloadFileExt = "file_ext"
	PayloadChunkID = "chunk_id"
)

// Sentinel payload values for points written without the core fields.
const (
	UnknownSource  = "unknown"
	UnknownChunkID = -1
)

// pointNamespace scopes content-derived point ids.
var pointNamespace = uuid.MustParse("6f1c8a52-3d4e-5b7a-9c0d-2e4f6a8b1c3d")

// idTextPrefix is the number of chunk characters mixed into a content-derived id.
const idTextPrefix = 64

// Payload is the metadata stored next to a vector.
type Payload struct {
	Text    string
	Source  string
	FileExt string
	ChunkID int
	Tags    map[string]string
}

// IsReserved reports whether key is one of the core payload keys.
func IsReserved(key string) bool {
	switch key {
	case PayloadText, PayloadSource, PayloadFileExt, PayloadChunkID:
		return true
	}
	return false
}

// Fields flattens the payload into string fields. Core keys win over tags of the same name.
func (p Payload) Fields() map[string]string {
	m := make(map[string]string, len(p.Tags)+4)
	for k, v := range p.Tags {
		m[k] = v
	}
	m[PayloadText] = p.Text
	m[PayloadSource] = p.Source
	m[PayloadFileExt] = p.FileExt
	m[PayloadChunkID] = strconv.Itoa(p.ChunkID)
	return m
}

// PayloadFromFields rebuilds a payload from stored fields.
// Missing source becomes UnknownSource, a missing or malformed chunk id becomes UnknownChunkID.
func PayloadFromFields(m map[string]string) Payload {
	p := Payload{
		Text:    m[PayloadText],
		Source:  m[PayloadSource],
		FileExt: m[PayloadFileExt],
		ChunkID: UnknownChunkID,
	}
	if p.Source == "" {
		p.Source = UnknownSource
	}
	if raw, ok := m[PayloadChunkID]; ok {
		if id, err := strconv.Atoi(raw); err == nil {
			p.ChunkID = id
		}
	}
	for k, v := range m {
		if IsReserved(k) {
			continue
		}
		if p.Tags == nil {
			p.Tags = make(map[string]string)
		}
		p.Tags[k] = v
	}
	return p
}

// Point is the stored unit of a collection.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is one nearest-neighbour result. Score is a similarity in [0,1], higher is better.
type Hit struct {
	ID      string
	Score   float64
	Payload Payload
}

// IDParts are the inputs of a content-derived point id.
type IDParts struct {
	Namespace string
	Owner     string
	Session   string
	Source    string
	Position  int
	Text      string
}

// ContentPointID derives a stable UUIDv5 from the id parts and the first characters of the chunk text,
// so re-ingesting unchanged content overwrites the same points.
func ContentPointID(p IDParts) string {
	prefix := p.Text
	if r := []rune(prefix); len(r) > idTextPrefix {
		prefix = string(r[:idTextPrefix])
	}
	key := strings.Join([]string{
		p.Namespace, p.Owner, p.Session, p.Source, strconv.Itoa(p.Position), prefix,
	}, "|")
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}
