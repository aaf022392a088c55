package health

import "context"

// IndexPinger checks vector index availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks an optional dependency such as the embedding or generation backend.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
