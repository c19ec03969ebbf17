package models

import (
	"fmt"
	"time"
)

// FileTypeWebScrape is the only file type this service produces.
const FileTypeWebScrape = "web_scrape"

// APIKey maps a caller token to the team and user it belongs to.
type APIKey struct {
	Key    string `json:"api_key"`
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

// Identity is the resolved caller of a request.
type Identity struct {
	TeamID string
	UserID string
}

// ScrapeRequest is the inbound request body. Nil chunk parameters take
// the configured defaults.
type ScrapeRequest struct {
	URL          string `json:"url"`
	ChunkSize    *int   `json:"chunk_size,omitempty"`
	ChunkOverlap *int   `json:"chunk_overlap,omitempty"`
}

// File is the metadata row recorded for every stored page.
type File struct {
	FileID      string    `json:"file_id"`
	Type        string    `json:"type"`
	FileName    string    `json:"file_name"`
	Title       string    `json:"title,omitempty"`
	TeamID      string    `json:"team_id"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChunkMetadata travels with every chunk and document.
type ChunkMetadata struct {
	Source string `json:"source"`
	FileID string `json:"file_id"`
}

// Chunk is a bounded piece of a fetched page.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`

	// Overlap is the byte length of the prefix shared with the previous chunk.
	Overlap int `json:"-"`
}

// Document is one stored chunk with its embedding.
type Document struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
	ChunkIndex int           `json:"chunk_index"`
	Embedding  []float32     `json:"embedding,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// UsageLog is one audit entry per authenticated request.
type UsageLog struct {
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	Success   bool      `json:"success"`
	Error     *string   `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// ScrapeResult is the success response body.
type ScrapeResult struct {
	Markdown    string  `json:"markdown"`
	Chunks      []Chunk `json:"chunks"`
	FileID      string  `json:"file_id"`
	StoragePath string  `json:"storage_path"`
}

// StoragePath returns the object key for a team's raw page text.
func StoragePath(teamID, fileID string) string {
	return fmt.Sprintf("%s/%s.txt", teamID, fileID)
}

// DocumentID returns the deterministic ID of a file's n-th chunk document.
// Re-indexing the same file overwrites instead of duplicating.
func DocumentID(fileID string, chunkIndex int) string {
	return fmt.Sprintf("%s-%d", fileID, chunkIndex)
}
