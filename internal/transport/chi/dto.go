package chi

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DocumentInput is one caller-supplied document.
type DocumentInput struct {
	Text    string            `json:"text"`
	Source  string            `json:"source"`
	Doctype string            `json:"doctype,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
}

// IngestRequest is the body of POST /v1/ingest.
type IngestRequest struct {
	CollectionName string            `json:"collection_name"`
	Recreate       bool              `json:"recreate"`
	Owner          string            `json:"owner,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	Documents      []DocumentInput   `json:"documents"`
}

// SkippedFile reports an entry that was not indexed.
type SkippedFile struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// IngestResponse reports ingestion counts.
type IngestResponse struct {
	CollectionName string        `json:"collection_name,omitempty"`
	FilesSeen      int           `json:"files_seen"`
	FilesIndexed   int           `json:"files_indexed"`
	ChunksIndexed  int           `json:"chunks_indexed"`
	Skipped        []SkippedFile `json:"skipped"`
}

// QueryRequest is the body of POST /v1/query and POST /v1/answer.
type QueryRequest struct {
	PromptText          string         `json:"prompt_text"`
	TopK                *int           `json:"top_k,omitempty"`
	Rerank              *bool          `json:"rerank,omitempty"`
	Filters             map[string]any `json:"filters,omitempty"`
	CollectionName      string         `json:"collection_name"`
	ContentLanguageHint string         `json:"content_language_hint,omitempty"`
}

// SourceItem attributes one context chunk.
type SourceItem struct {
	Source  string  `json:"source"`
	ChunkID int     `json:"chunk_id"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// QueryResponse is the assembled context of a query.
type QueryResponse struct {
	ContextText string       `json:"context_text"`
	Sources     []SourceItem `json:"sources"`
}

// AnswerResponse adds the generation outcome to the context.
type AnswerResponse struct {
	QueryResponse
	Status           string `json:"status"`
	GeneratedContent string `json:"generated_content,omitempty"`
	FailureReason    string `json:"failure_reason,omitempty"`
	ContentLanguage  string `json:"content_language"`
}

// HealthResponse reports component health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
