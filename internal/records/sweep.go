package records

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pastebox/internal/dbx"
)

// SweepExpired deletes records whose deadline passed before now. Rows go
// first, then bodies. It returns the number of rows removed.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for {
		batch, err := s.store.Records(s.store.DB()).ListExpired(ctx, now.UTC(), sweepBatch)
		if err != nil {
			return removed, err
		}
		if len(batch) == 0 {
			break
		}
		ids := make([]uuid.UUID, 0, len(batch))
		for _, st := range batch {
			ids = append(ids, st.ID)
		}
		var deleted []uuid.UUID
		err = dbx.WithTx(ctx, s.store.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
			var err error
			deleted, err = s.store.Records(tx).DeleteByIDs(ctx, ids)
			return err
		})
		if err != nil {
			return removed, err
		}
		for _, recID := range deleted {
			s.discardBlob(ctx, recID.String())
		}
		removed += len(deleted)
		if len(batch) < sweepBatch {
			break
		}
	}
	s.metrics.JanitorRemoved("expired", removed)
	return removed, nil
}

// SweepOrphans deletes bodies older than grace that no record row points at.
// Keys that are not record ids are orphans too.
func (s *Service) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	objects, err := s.blobs.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.clock().Add(-grace)
	candidates := make(map[string]uuid.UUID)
	var ids []uuid.UUID
	for _, obj := range objects {
		if obj.ModifiedAt.After(cutoff) {
			continue
		}
		recID, err := uuid.Parse(obj.Key)
		if err != nil {
			candidates[obj.Key] = uuid.Nil
			continue
		}
		candidates[obj.Key] = recID
		ids = append(ids, recID)
	}
	existing := make(map[uuid.UUID]bool)
	for start := 0; start < len(ids); start += sweepBatch {
		end := min(start+sweepBatch, len(ids))
		found, err := s.store.Records(s.store.DB()).Existing(ctx, ids[start:end])
		if err != nil {
			return 0, err
		}
		for k := range found {
			existing[k] = true
		}
	}

	removed := 0
	for key, recID := range candidates {
		if recID != uuid.Nil && existing[recID] {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "orphan delete failed", "key", key, "error", err)
			continue
		}
		removed++
	}
	s.metrics.JanitorRemoved("orphan", removed)
	if removed > 0 {
		s.logger.InfoContext(ctx, "orphan sweep removed bodies", "count", removed)
	}
	return removed, nil
}
