package collection

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/santoshnarayanan/sda/internal/domain"
)

// collectionToHash converts a domain Collection to a map for HSET.
func collectionToHash(col domain.Collection, now time.Time) map[string]string {
	return map[string]string{
		"name":          col.Name,
		"vector_size":   strconv.Itoa(col.VectorSize),
		"distance":      string(col.Distance),
		"filter_fields": strings.Join(col.FilterFields, ","),
		"created_at":    strconv.FormatInt(now.UnixMilli(), 10),
	}
}

// collectionFromHash hydrates a domain Collection from an HGETALL result map.
func collectionFromHash(m map[string]string) (domain.Collection, error) {
	size, err := strconv.Atoi(m["vector_size"])
	if err != nil || size <= 0 {
		return domain.Collection{}, fmt.Errorf("invalid vector_size %q", m["vector_size"])
	}

	col := domain.Collection{
		Name:         m["name"],
		VectorSize:   size,
		Distance:     domain.Distance(m["distance"]),
		FilterFields: []string{},
	}
	if col.Distance == "" {
		col.Distance = domain.DistanceCosine
	}
	if raw := m["filter_fields"]; raw != "" {
		col.FilterFields = strings.Split(raw, ",")
	}
	return col, nil
}
