package steps

import (
	"context"
	"fmt"

	"github.com/haven-hvn/haven/pkg/pipeline"
)

// Prober extracts media metadata and a perceptual content hash from a file
type Prober interface {
	Probe(ctx context.Context, path string) (pipeline.MediaInfo, error)
}

// Catalog is the persistent media catalog consulted by the ingest step.
// Record failures never fail a step; the external work already happened.
type Catalog interface {
	IsDuplicate(ctx context.Context, contentHash string) (bool, error)
	RecordMedia(ctx context.Context, info pipeline.MediaInfo) error
}

// Analyzer runs vision-model content analysis over a media file
type Analyzer interface {
	Analyze(ctx context.Context, path string) (pipeline.AnalysisResult, error)
}

// Encryptor encrypts a file, returning the encryption metadata and the path
// of the encrypted artifact
type Encryptor interface {
	Encrypt(ctx context.Context, path string) (pipeline.EncryptionMetadata, string, error)
}

// ProgressFunc reports upload progress. It is invoked in the task that
// issued the upload call and never outlives it.
type ProgressFunc func(stage string, percent float64)

// Uploader pushes a file to content-addressed storage
type Uploader interface {
	Upload(ctx context.Context, path string, progress ProgressFunc) (pipeline.UploadResult, error)
}

// SyncOutcome is the result of writing a catalog entity to the chain
type SyncOutcome struct {
	EntityKey       string
	TransactionHash string
	IsUpdate        bool
}

// Syncer writes the processed item's catalog entity
type Syncer interface {
	Sync(ctx context.Context, c *pipeline.Context) (SyncOutcome, error)
}

// InsufficientFundsError reports that a chain write could not be paid for.
// It carries the structured fields the user-facing surface needs to render
// an actionable message.
type InsufficientFundsError struct {
	WalletAddress string
	ChainName     string
	TokenSymbol   string
	Err           error
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s on %s for wallet %s: %v",
		e.TokenSymbol, e.ChainName, e.WalletAddress, e.Err)
}

func (e *InsufficientFundsError) Unwrap() error {
	return e.Err
}
