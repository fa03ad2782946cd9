package steps

import (
	"context"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/pipeline"
)

// EncryptStep encrypts the file before upload. Disabled by default; enabled
// per run via the encrypt option. When it runs, the upload step uses the
// encrypted artifact instead of the source file.
type EncryptStep struct {
	pipeline.ConditionalStep

	bus       *events.Bus
	encryptor Encryptor
}

// NewEncryptStep creates the encrypt step
func NewEncryptStep(bus *events.Bus, encryptor Encryptor, defaultEnabled bool) *EncryptStep {
	return &EncryptStep{
		ConditionalStep: pipeline.ConditionalStep{
			EnabledOption:  "encrypt",
			DefaultEnabled: defaultEnabled,
		},
		bus:       bus,
		encryptor: encryptor,
	}
}

func (s *EncryptStep) Name() string { return "encrypt" }

func (s *EncryptStep) Process(ctx context.Context, c *pipeline.Context) pipeline.StepResult {
	s.bus.Publish(events.New(events.EventEncryptRequested, s.Name(), c.ID, map[string]any{
		"path": c.SourcePath,
	}))

	if s.encryptor == nil {
		// Encryption without credentials would silently upload plaintext
		return pipeline.Fail(s.Name(), pipeline.Fatal("ENCRYPT_CONFIG_MISSING", "encryption enabled but no encryptor configured"))
	}

	meta, encryptedPath, err := s.encryptor.Encrypt(ctx, c.SourcePath)
	if err != nil {
		return pipeline.Fail(s.Name(), pipeline.Errorf(categorize(err), "ENCRYPT_ERROR", err))
	}

	c.Encryption = &meta
	c.EncryptedPath = encryptedPath
	c.Touch()

	s.bus.Publish(events.New(events.EventEncryptComplete, s.Name(), c.ID, map[string]any{
		"path":           c.SourcePath,
		"encrypted_path": encryptedPath,
		"chain":          meta.Chain,
	}))

	return pipeline.OK(s.Name(), map[string]any{
		"encrypted_path": encryptedPath,
		"data_hash":      meta.DataToEncryptHash,
	})
}
