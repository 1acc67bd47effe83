package dispatch

import (
	"context"

	"github.com/hopeana/dispatcher/internal/models"
)

// DefaultChunkSize is the per-call recipient limit of the bulk provider.
const DefaultChunkSize = 100

// Chunk is the payload of one bulk provider call.
type Chunk struct {
	Envelope   models.Envelope    `json:"envelope"`
	Recipients []models.Recipient `json:"recipients"`
}

// ChunkResult is the provider's verdict for a whole chunk.
type ChunkResult struct {
	Success bool
	Error   string
}

// BulkSender delivers one chunk. A returned error means the call itself
// did not complete; a completed call reports its outcome in ChunkResult.
type BulkSender interface {
	SendBulk(ctx context.Context, chunk Chunk) (ChunkResult, error)
}
