// Package batch is the boundary to the remote batch-completion API.
// It narrows the OpenAI-compatible client to the four operations the
// task manager needs (upload input, create job, poll status, fetch
// output) so tests can substitute a fake provider.
package batch

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// API is the slice of the batch provider the task manager consumes.
// *openai.Client satisfies it.
type API interface {
	// CreateFileBytes uploads a batch input file.
	CreateFileBytes(ctx context.Context, request openai.FileBytesRequest) (openai.File, error)

	// CreateBatch creates a batch job referencing an uploaded input file.
	CreateBatch(ctx context.Context, request openai.CreateBatchRequest) (openai.BatchResponse, error)

	// RetrieveBatch fetches the current status of a batch job.
	RetrieveBatch(ctx context.Context, batchID string) (openai.BatchResponse, error)

	// GetFileContent downloads an output file by id.
	GetFileContent(ctx context.Context, fileID string) (openai.RawResponse, error)
}

// NewClient builds an OpenAI-compatible client for the batch provider.
// An empty baseURL targets the default OpenAI endpoint.
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
