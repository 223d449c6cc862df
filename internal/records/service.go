// Package records implements the record lifecycle: create, read, update,
// delete, reactions and the background sweeps. Record metadata lives in the
// relational store and bodies live in the blob store.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pastebox/internal/apperr"
	"pastebox/internal/blob"
	"pastebox/internal/codec"
	"pastebox/internal/dbx"
	"pastebox/internal/domain"
	"pastebox/internal/id"
	"pastebox/internal/metrics"
	"pastebox/internal/storage"
	"pastebox/internal/validation"
)

const sweepBatch = 100

// Config wires the service collaborators.
type Config struct {
	Store   storage.Manager
	Blobs   blob.Store
	Codec   codec.Codec
	IDs     *id.Generator
	BaseURL string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type Service struct {
	store   storage.Manager
	blobs   blob.Store
	codec   codec.Codec
	ids     *id.Generator
	baseURL string
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("records: store required")
	}
	if cfg.Blobs == nil {
		return nil, errors.New("records: blob store required")
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.Base64{}
	}
	if cfg.IDs == nil {
		cfg.IDs = id.New(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		store:   cfg.Store,
		blobs:   cfg.Blobs,
		codec:   cfg.Codec,
		ids:     cfg.IDs,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     time.Now,
	}, nil
}

// CreateInput carries a new record. Deadline must not lie in the past.
type CreateInput struct {
	OwnerID  uuid.UUID `json:"owner_id" validate:"required"`
	Text     string    `json:"text"`
	Title    *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Deadline time.Time `json:"deadline" validate:"required"`
	Private  bool      `json:"private"`
}

// UpdateInput replaces a record's metadata. A nil Title or Text leaves the
// current value in place; Deadline and Private are always written.
type UpdateInput struct {
	ID       uuid.UUID `json:"id" validate:"required"`
	OwnerID  uuid.UUID `json:"owner_id" validate:"required"`
	Title    *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Text     *string   `json:"text"`
	Deadline time.Time `json:"deadline" validate:"required"`
	Private  bool      `json:"private"`
}

// Created identifies a freshly stored record.
type Created struct {
	ID    uuid.UUID `json:"id"`
	Token string    `json:"token"`
}

// Summary is a record without its body.
type Summary struct {
	ID        uuid.UUID `json:"id"`
	Token     string    `json:"token"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title,omitempty"`
	Private   bool      `json:"private"`
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline"`
	Likes     int64     `json:"likes"`
	Dislikes  int64     `json:"dislikes"`
}

// View is a record together with its body.
type View struct {
	Summary
	Text string `json:"text"`
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Created, error) {
	now := s.clock()
	var deadlineErr error
	if !in.Deadline.IsZero() && in.Deadline.Before(now) {
		deadlineErr = apperr.Validation("deadline must not be in the past")
	}
	if err := apperr.Merge(validation.Struct(in), domain.ValidateText(in.Text), deadlineErr); err != nil {
		return Created{}, err
	}

	owner, err := s.loadOwner(ctx, in.OwnerID)
	if err != nil {
		return Created{}, err
	}
	recID, err := s.ids.NewID(ctx)
	if err != nil {
		return Created{}, err
	}
	key := recID.String()
	locator, err := s.blobs.Upload(ctx, key, in.Text)
	if err != nil {
		return Created{}, fmt.Errorf("upload text: %w", err)
	}

	rec, err := domain.NewRecord(recID, owner.ID(), in.Title, locator, in.Private, now, in.Deadline.UTC().Truncate(time.Microsecond))
	if err == nil {
		err = owner.AddRecord(rec, now)
	}
	if err == nil {
		err = dbx.WithTx(ctx, s.store.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.store.Records(tx).Create(ctx, rec.State()); err != nil {
				return err
			}
			return s.store.Users(tx).Update(ctx, owner.State())
		})
	}
	if err != nil {
		s.discardBlob(ctx, key)
		return Created{}, err
	}

	token, err := s.codec.Encode(recID)
	if err != nil {
		return Created{}, fmt.Errorf("encode token: %w", err)
	}
	s.metrics.RecordOp("created")
	s.logger.InfoContext(ctx, "record created", "record_id", recID, "owner_id", owner.ID())
	return Created{ID: recID, Token: token}, nil
}

// Get returns the record and its body when requester may see it. Expired
// records read as missing.
func (s *Service) Get(ctx context.Context, recordID, requester uuid.UUID) (View, error) {
	rec, err := s.visibleRecord(ctx, recordID, requester)
	if err != nil {
		return View{}, err
	}
	text, err := s.readText(ctx, rec)
	if err != nil {
		return View{}, err
	}
	return s.view(rec, text)
}

func (s *Service) GetByToken(ctx context.Context, token string, requester uuid.UUID) (View, error) {
	recID, err := s.decode(token)
	if err != nil {
		return View{}, err
	}
	return s.Get(ctx, recID, requester)
}

func (s *Service) Update(ctx context.Context, in UpdateInput) (View, error) {
	var textErr error
	if in.Text != nil {
		textErr = domain.ValidateText(*in.Text)
	}
	if err := validation.Struct(in); err != nil {
		return View{}, apperr.Merge(err, textErr)
	}

	owner, err := s.loadOwner(ctx, in.OwnerID)
	if err != nil {
		return View{}, err
	}
	rec, ok := owner.Record(in.ID)
	if !ok {
		return View{}, apperr.NotFound("Paste not found")
	}
	var titleErr error
	if in.Title != nil {
		titleErr = rec.Rename(*in.Title)
	}
	if err := apperr.Merge(textErr, titleErr, rec.Reschedule(in.Deadline.UTC().Truncate(time.Microsecond))); err != nil {
		return View{}, err
	}
	rec.SetPrivate(in.Private)

	if in.Text != nil {
		if err := s.blobs.Update(ctx, rec.StorageKey(), *in.Text); err != nil {
			return View{}, fmt.Errorf("update text: %w", err)
		}
	}
	if err := s.store.Records(s.store.DB()).Update(ctx, rec.State()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{}, apperr.NotFound("Paste not found")
		}
		return View{}, err
	}
	s.metrics.RecordOp("updated")

	var text string
	if in.Text != nil {
		text = *in.Text
	} else if text, err = s.readText(ctx, rec); err != nil {
		return View{}, err
	}
	return s.view(rec, text)
}

// Delete removes the row first and the body afterwards. A body left behind
// by a failed blob delete is collected by SweepOrphans.
func (s *Service) Delete(ctx context.Context, recordID, ownerID uuid.UUID) (uuid.UUID, error) {
	owner, err := s.loadOwner(ctx, ownerID)
	if err != nil {
		return uuid.Nil, err
	}
	rec, err := owner.RemoveRecord(recordID, s.clock())
	if err != nil {
		return uuid.Nil, err
	}
	err = dbx.WithTx(ctx, s.store.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		deleted, err := s.store.Records(tx).DeleteByIDs(ctx, []uuid.UUID{rec.ID()})
		if err != nil {
			return err
		}
		if len(deleted) == 0 {
			return apperr.NotFound("Paste not found")
		}
		return s.store.Users(tx).Update(ctx, owner.State())
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.discardBlob(ctx, rec.StorageKey())
	s.metrics.RecordOp("deleted")
	s.logger.InfoContext(ctx, "record deleted", "record_id", rec.ID(), "owner_id", ownerID)
	return rec.ID(), nil
}

// ListPublic returns public, unexpired records, newest first.
func (s *Service) ListPublic(ctx context.Context, page storage.Page) ([]Summary, error) {
	states, err := s.store.Records(s.store.DB()).ListPublic(ctx, s.clock(), page)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(states))
	for _, st := range states {
		sum, err := s.summary(domain.RestoreRecord(st))
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

// ListForUser returns every record the user owns, expired ones included.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Summary, error) {
	owner, err := s.loadOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	recs := owner.Records()
	out := make([]Summary, 0, len(recs))
	for _, r := range recs {
		sum, err := s.summary(r)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *Service) Like(ctx context.Context, ownerID, recordID, requester uuid.UUID) (Summary, error) {
	return s.react(ctx, ownerID, recordID, requester, storage.CounterLikes)
}

func (s *Service) Dislike(ctx context.Context, ownerID, recordID, requester uuid.UUID) (Summary, error) {
	return s.react(ctx, ownerID, recordID, requester, storage.CounterDislikes)
}

func (s *Service) react(ctx context.Context, ownerID, recordID, requester uuid.UUID, c storage.Counter) (Summary, error) {
	owner, err := s.loadOwner(ctx, ownerID)
	if err != nil {
		return Summary{}, err
	}
	rec, ok := owner.Record(recordID)
	if !ok || rec.Expired(s.clock()) {
		return Summary{}, apperr.NotFound("Paste not found")
	}
	if !domain.CanView(rec, requester) {
		return Summary{}, apperr.Forbidden("Access denied")
	}
	likes, dislikes, err := s.store.Records(s.store.DB()).Increment(ctx, rec.ID(), c)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Summary{}, apperr.NotFound("Paste not found")
		}
		return Summary{}, err
	}
	rec.SetCounters(likes, dislikes)
	s.metrics.Reaction(string(c))
	return s.summary(rec)
}

func (s *Service) loadOwner(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	st, err := s.store.Users(s.store.DB()).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	return domain.RestoreUser(st), nil
}

func (s *Service) visibleRecord(ctx context.Context, recordID, requester uuid.UUID) (*domain.Record, error) {
	st, err := s.store.Records(s.store.DB()).GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("Paste not found")
		}
		return nil, err
	}
	rec := domain.RestoreRecord(st)
	if rec.Expired(s.clock()) {
		return nil, apperr.NotFound("Paste not found")
	}
	if !domain.CanView(rec, requester) {
		return nil, apperr.Forbidden("Access denied")
	}
	return rec, nil
}

func (s *Service) readText(ctx context.Context, rec *domain.Record) (string, error) {
	text, err := s.blobs.Get(ctx, rec.Locator())
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return "", apperr.NotFound("Paste not found")
		}
		return "", fmt.Errorf("read text: %w", err)
	}
	return text, nil
}

func (s *Service) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "blob delete failed, left for the orphan sweep", "key", key, "error", err)
	}
}

func (s *Service) decode(token string) (uuid.UUID, error) {
	recID, err := s.codec.Decode(token)
	if err != nil {
		return uuid.Nil, apperr.Decode(err)
	}
	return recID, nil
}

func (s *Service) summary(r *domain.Record) (Summary, error) {
	token, err := s.codec.Encode(r.ID())
	if err != nil {
		return Summary{}, fmt.Errorf("encode token: %w", err)
	}
	return Summary{
		ID:        r.ID(),
		Token:     token,
		OwnerID:   r.OwnerID(),
		Title:     r.Title(),
		Private:   r.Private(),
		CreatedAt: r.CreatedAt(),
		Deadline:  r.Deadline(),
		Likes:     r.Likes(),
		Dislikes:  r.Dislikes(),
	}, nil
}

func (s *Service) view(r *domain.Record, text string) (View, error) {
	sum, err := s.summary(r)
	if err != nil {
		return View{}, err
	}
	return View{Summary: sum, Text: text}, nil
}
