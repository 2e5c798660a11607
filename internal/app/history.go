package app

import (
	"context"
	"fmt"
	"strings"

	"contentbrain/pkg/domain"
)

// ListHistory returns the caller's generations, newest first, capped at the
// history page size. Store failures are surfaced (strict policy).
func (a *App) ListHistory(_ context.Context, identity domain.Identity) ([]domain.GenerationRecord, error) {
	records, err := a.store.ListGenerationsByOwner(identity.UserID, historyPageSize)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// DeleteHistory removes one of the caller's generations. The record must
// exist and belong to the caller.
func (a *App) DeleteHistory(_ context.Context, identity domain.Identity, recordID string) error {
	recordID = strings.TrimSpace(recordID)
	if recordID == "" {
		return fmt.Errorf("%w: record id required", ErrInvalidInput)
	}
	record, ok, err := a.store.GetGeneration(recordID)
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}
	if !ok {
		return ErrRecordNotFound
	}
	if record.OwnerID != identity.UserID {
		return ErrNotOwner
	}
	if err := a.store.DeleteGeneration(recordID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}
