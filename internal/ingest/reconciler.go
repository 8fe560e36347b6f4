package ingest

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/repo"
)

// Reconciler rebuilds derived state from the store and manages ingestion
// checkpoints.
type Reconciler struct {
	guard  *repo.Guard
	convs  *repo.ConversationRepo
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(g *repo.Guard, convs *repo.ConversationRepo, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{guard: g, convs: convs, logger: logger}
}

// WarmIdentityCache replaces the identity cache with every live external id
// binding in the store.
func (r *Reconciler) WarmIdentityCache(ctx context.Context) (int, error) {
	bindings, err := r.convs.Bindings(ctx)
	if err != nil {
		return 0, err
	}
	r.convs.Cache().Load(bindings)
	r.logger.Info("identity cache warmed", zap.Int("bindings", len(bindings)))
	return len(bindings), nil
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(ctx context.Context, key, value string) error {
	return r.guard.Do(ctx, "set_checkpoint", func(ctx context.Context, b repo.Backend) error {
		return b.SetSyncState(ctx, key, value)
	})
}

// GetCheckpoint retrieves a sync checkpoint value, "" when unset.
func (r *Reconciler) GetCheckpoint(ctx context.Context, key string) (string, error) {
	var value string
	err := r.guard.Do(ctx, "get_checkpoint", func(ctx context.Context, b repo.Backend) error {
		var err error
		value, err = b.GetSyncState(ctx, key)
		return err
	})
	return value, err
}

// LastIngested returns the platform timestamp of the newest ingested
// message, or 0.
func (r *Reconciler) LastIngested(ctx context.Context) (int64, error) {
	v, err := r.GetCheckpoint(ctx, CheckpointLastIngested)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}
