package ledger

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/lcrostarosa/vigil/internal/kv"
)

// OutboxKey is the store key of remote cancellations still owed.
const OutboxKey = "cancel_outbox"

// InstallKey is the store key of this installation's id.
const InstallKey = "install_id"

// Outbox holds remote task ids whose cancellation has not been acknowledged.
type Outbox struct {
	doc *kv.Doc[[]string]
}

// NewOutbox creates an outbox on s.
func NewOutbox(s kv.Store) *Outbox {
	return &Outbox{doc: kv.NewDoc[[]string](s, OutboxKey)}
}

// Add records taskID once.
func (o *Outbox) Add(ctx context.Context, taskID string) error {
	ids, _, err := o.doc.Load(ctx)
	if err != nil {
		return fmt.Errorf("load outbox: %w", err)
	}
	if slices.Contains(ids, taskID) {
		return nil
	}
	return o.doc.Save(ctx, append(ids, taskID))
}

// Remove drops taskID.
func (o *Outbox) Remove(ctx context.Context, taskID string) error {
	ids, _, err := o.doc.Load(ctx)
	if err != nil {
		return fmt.Errorf("load outbox: %w", err)
	}
	i := slices.Index(ids, taskID)
	if i < 0 {
		return nil
	}
	ids = slices.Delete(ids, i, i+1)
	if len(ids) == 0 {
		return o.doc.Delete(ctx)
	}
	return o.doc.Save(ctx, ids)
}

// List returns owed cancellations oldest first.
func (o *Outbox) List(ctx context.Context) ([]string, error) {
	ids, _, err := o.doc.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load outbox: %w", err)
	}
	return ids, nil
}

// Clear drops every owed cancellation.
func (o *Outbox) Clear(ctx context.Context) error {
	return o.doc.Delete(ctx)
}

// InstallID returns the persistent id of this installation, creating it on
// first use. Remote task ids derive from it so a restarted process can still
// address tasks it armed earlier.
func InstallID(ctx context.Context, s kv.Store) (string, error) {
	doc := kv.NewDoc[string](s, InstallKey)
	id, ok, err := doc.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load install id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()[:8]
	if err := doc.Save(ctx, id); err != nil {
		return "", fmt.Errorf("save install id: %w", err)
	}
	return id, nil
}
