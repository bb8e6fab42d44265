// Package search provides full-text note search with a Meilisearch primary
// and a PostgreSQL fallback.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	OwnerID    string `json:"ownerId"`
	OwnerEmail string `json:"ownerEmail,omitempty"`
}

// Query describes a search request. An empty OwnerID searches every note.
type Query struct {
	Text    string
	OwnerID string
	Limit   int
	Offset  int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// NoteRecord is the data we index for a note.
type NoteRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	OwnerID    string `json:"ownerId"`
	OwnerEmail string `json:"ownerEmail"`
}
