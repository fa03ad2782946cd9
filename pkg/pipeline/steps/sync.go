package steps

import (
	"context"
	"errors"

	"github.com/haven-hvn/haven/pkg/events"
	"github.com/haven-hvn/haven/pkg/pipeline"
)

// SyncStep writes the processed item's catalog entity to the chain.
// Disabled by default; enabled per run via the sync_enabled option.
type SyncStep struct {
	pipeline.ConditionalStep

	bus    *events.Bus
	syncer Syncer
}

// NewSyncStep creates the sync step
func NewSyncStep(bus *events.Bus, syncer Syncer, defaultEnabled bool) *SyncStep {
	return &SyncStep{
		ConditionalStep: pipeline.ConditionalStep{
			EnabledOption:  "sync_enabled",
			DefaultEnabled: defaultEnabled,
		},
		bus:    bus,
		syncer: syncer,
	}
}

func (s *SyncStep) Name() string { return "sync" }

func (s *SyncStep) Process(ctx context.Context, c *pipeline.Context) pipeline.StepResult {
	s.bus.Publish(events.New(events.EventSyncRequested, s.Name(), c.ID, map[string]any{
		"path": c.SourcePath,
		"cid":  c.ContentID(),
	}))

	if s.syncer == nil {
		return pipeline.Fail(s.Name(), pipeline.Fatal("SYNC_CONFIG_MISSING", "sync enabled but no syncer configured"))
	}

	outcome, err := s.syncer.Sync(ctx, c)
	if err != nil {
		var funds *InsufficientFundsError
		if errors.As(err, &funds) {
			// Permanent, but with enough structure for the surface to tell
			// the user which wallet to top up
			stepErr := pipeline.Permanent("INSUFFICIENT_GAS", err.Error()).WithDetails(map[string]any{
				"wallet_address": funds.WalletAddress,
				"chain_name":     funds.ChainName,
				"token_symbol":   funds.TokenSymbol,
			})
			return pipeline.Fail(s.Name(), stepErr)
		}
		return pipeline.Fail(s.Name(), pipeline.Errorf(categorize(err), "SYNC_ERROR", err))
	}

	c.SyncEntityKey = outcome.EntityKey
	c.Touch()

	s.bus.Publish(events.New(events.EventSyncComplete, s.Name(), c.ID, map[string]any{
		"path":             c.SourcePath,
		"entity_key":       outcome.EntityKey,
		"transaction_hash": outcome.TransactionHash,
		"is_update":        outcome.IsUpdate,
	}))

	return pipeline.OK(s.Name(), map[string]any{
		"entity_key":       outcome.EntityKey,
		"transaction_hash": outcome.TransactionHash,
		"is_update":        outcome.IsUpdate,
	})
}
