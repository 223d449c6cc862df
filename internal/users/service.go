// Package users implements registration, login, e-mail confirmation and the
// admin user management operations.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pastebox/internal/apperr"
	"pastebox/internal/auth"
	"pastebox/internal/blob"
	"pastebox/internal/dbx"
	"pastebox/internal/domain"
	"pastebox/internal/id"
	"pastebox/internal/notify"
	"pastebox/internal/security"
	"pastebox/internal/storage"
	"pastebox/internal/validation"
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(id auth.Identity) (string, time.Time, error)
}

// Mailer queues outbound mail without blocking.
type Mailer interface {
	Enqueue(msg notify.Message) bool
}

type Config struct {
	Store   storage.Manager
	Blobs   blob.Store
	Tokens  TokenIssuer
	Mailer  Mailer
	IDs     *id.Generator
	BaseURL string
	Logger  *slog.Logger
}

type Service struct {
	store   storage.Manager
	blobs   blob.Store
	tokens  TokenIssuer
	mailer  Mailer
	ids     *id.Generator
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("users: store required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("users: token issuer required")
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
		tokens:  cfg.Tokens,
		mailer:  cfg.Mailer,
		ids:     cfg.IDs,
		baseURL: cfg.BaseURL,
		logger:  cfg.Logger,
		now:     time.Now,
	}, nil
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,alphanum,max=200"`
	Password string `json:"password" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=200"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Username *string `json:"username" validate:"omitempty,min=1,max=200"`
	Password *string `json:"password" validate:"omitempty,min=1,max=200"`
	Email    *string `json:"email" validate:"omitempty,email,max=200"`
	Role     *string `json:"role" validate:"omitempty,oneof=User Admin user admin"`
}

// Profile is the public view of a user.
type Profile struct {
	ID             uuid.UUID   `json:"id"`
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	EmailConfirmed bool        `json:"email_confirmed"`
	Role           domain.Role `json:"role"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Records        int         `json:"records"`
}

// Session is a signed bearer token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    uuid.UUID `json:"user_id"`
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Register creates a User-role account and queues its confirmation mail.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Profile, error) {
	if err := validation.Struct(in); err != nil {
		return Profile{}, err
	}
	hashed, err := security.HashPassword(in.Password)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}
	token, err := s.ids.Token(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("confirmation token: %w", err)
	}
	u, err := domain.CreateUser(in.Username, hashed, in.Email, domain.RoleUser, token, s.clock())
	if err != nil {
		return Profile{}, err
	}
	if err := s.store.Users(s.store.DB()).Create(ctx, u.State()); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return Profile{}, apperr.Conflict("username already taken")
		}
		return Profile{}, err
	}
	s.publish(ctx, u.PullEvents())
	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID(), "username", u.Username().String())
	return profile(u), nil
}

func (s *Service) publish(ctx context.Context, events []domain.Event) {
	for _, ev := range events {
		switch e := ev.(type) {
		case domain.UserCreated:
			s.sendConfirmation(ctx, e.UserID, e.Username, e.Email, e.ConfirmationToken)
		default:
			s.logger.DebugContext(ctx, "unhandled event", "event", ev.EventName())
		}
	}
}

func (s *Service) sendConfirmation(ctx context.Context, userID uuid.UUID, username, email, token string) {
	if s.mailer == nil {
		return
	}
	msg := notify.ConfirmationMessage(s.baseURL, userID, username, email, token)
	if !s.mailer.Enqueue(msg) {
		s.logger.WarnContext(ctx, "confirmation mail dropped", "user_id", userID)
	}
}

// Login checks the credentials and issues a session token. Legacy password
// hashes are upgraded on success.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := validation.Struct(in); err != nil {
		return Session{}, err
	}
	st, err := s.store.Users(s.store.DB()).GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, apperr.Authentication("invalid username or password")
		}
		return Session{}, err
	}
	u := domain.RestoreUser(st)
	ok, err := security.VerifyPassword(u.PasswordHash().String(), in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return Session{}, apperr.Authentication("invalid username or password")
	}
	if security.IsLegacy(u.PasswordHash().String()) {
		s.upgradeHash(ctx, u, in.Password)
	}

	token, exp, err := s.tokens.Issue(auth.Identity{
		UserID:   u.ID(),
		Username: u.Username().String(),
		Email:    u.Email().String(),
		Role:     u.Role(),
	})
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Token: token, ExpiresAt: exp, UserID: u.ID()}, nil
}

func (s *Service) upgradeHash(ctx context.Context, u *domain.User, password string) {
	hashed, err := security.HashPassword(password)
	if err == nil {
		err = u.UpdatePassword(hashed, s.clock())
	}
	if err == nil {
		err = s.store.Users(s.store.DB()).Update(ctx, u.State())
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password hash upgrade failed", "user_id", u.ID(), "error", err)
	}
}

func (s *Service) ConfirmEmail(ctx context.Context, userID uuid.UUID, token string) error {
	u, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if err := u.ConfirmEmail(token, s.clock()); err != nil {
		return err
	}
	return s.save(ctx, u)
}

func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Profile, error) {
	u, err := s.load(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return profile(u), nil
}

func (s *Service) List(ctx context.Context, page storage.Page) ([]Profile, error) {
	states, err := s.store.Users(s.store.DB()).List(ctx, page)
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(states))
	for _, st := range states {
		out = append(out, profile(domain.RestoreUser(st)))
	}
	return out, nil
}

// Update applies the provided fields. A changed e-mail address resets the
// confirmation and sends a fresh link.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, in UpdateInput) (Profile, error) {
	if err := validation.Struct(in); err != nil {
		return Profile{}, err
	}
	u, err := s.load(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	now := s.clock()
	if in.Username != nil {
		if err := u.UpdateUsername(*in.Username, now); err != nil {
			return Profile{}, err
		}
	}
	if in.Password != nil {
		hashed, err := security.HashPassword(*in.Password)
		if err != nil {
			return Profile{}, fmt.Errorf("hash password: %w", err)
		}
		if err := u.UpdatePassword(hashed, now); err != nil {
			return Profile{}, err
		}
	}
	emailChanged := false
	if in.Email != nil {
		before := u.Email().String()
		token, err := s.ids.Token(ctx)
		if err != nil {
			return Profile{}, fmt.Errorf("confirmation token: %w", err)
		}
		if err := u.UpdateEmail(*in.Email, token, now); err != nil {
			return Profile{}, err
		}
		emailChanged = u.Email().String() != before
	}
	if in.Role != nil {
		role, err := domain.ParseRole(*in.Role)
		if err != nil {
			return Profile{}, err
		}
		if err := u.UpdateRole(role, now); err != nil {
			return Profile{}, err
		}
	}
	if err := s.save(ctx, u); err != nil {
		return Profile{}, err
	}
	if emailChanged {
		s.sendConfirmation(ctx, u.ID(), u.Username().String(), u.Email().String(), u.ConfirmationToken())
	}
	return profile(u), nil
}

// DeleteByID removes the users and, through the cascade, their records. It
// returns the ids that existed.
func (s *Service) DeleteByID(ctx context.Context, ids ...uuid.UUID) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, apperr.Validation("at least one id is required")
	}
	var keys []string
	var deleted []uuid.UUID
	err := dbx.WithTx(ctx, s.store.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, userID := range ids {
			recs, err := s.store.Records(tx).ListByOwner(ctx, userID)
			if err != nil {
				return err
			}
			for _, r := range recs {
				keys = append(keys, r.ID.String())
			}
		}
		var err error
		deleted, err = s.store.Users(tx).DeleteByIDs(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, apperr.NotFound("User not found")
	}
	s.discardBlobs(ctx, keys)
	s.logger.InfoContext(ctx, "users deleted", "count", len(deleted))
	return deleted, nil
}

func (s *Service) DeleteByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	var keys []string
	var deleted uuid.UUID
	err := dbx.WithTx(ctx, s.store.DB(), nil, func(ctx context.Context, tx dbx.DBTX) error {
		st, err := s.store.Users(tx).GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		for _, r := range st.Records {
			keys = append(keys, r.ID.String())
		}
		deleted, err = s.store.Users(tx).DeleteByUsername(ctx, username)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return uuid.Nil, apperr.NotFound("User not found")
		}
		return uuid.Nil, err
	}
	s.discardBlobs(ctx, keys)
	s.logger.InfoContext(ctx, "user deleted", "user_id", deleted, "username", username)
	return deleted, nil
}

func (s *Service) discardBlobs(ctx context.Context, keys []string) {
	if s.blobs == nil {
		return
	}
	for _, key := range keys {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
			s.logger.WarnContext(ctx, "blob delete failed, left for the orphan sweep", "key", key, "error", err)
		}
	}
}

func (s *Service) load(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	st, err := s.store.Users(s.store.DB()).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	return domain.RestoreUser(st), nil
}

func (s *Service) save(ctx context.Context, u *domain.User) error {
	if err := s.store.Users(s.store.DB()).Update(ctx, u.State()); err != nil {
		switch {
		case errors.Is(err, storage.ErrConflict):
			return apperr.Conflict("username already taken")
		case errors.Is(err, storage.ErrNotFound):
			return apperr.NotFound("User not found")
		}
		return err
	}
	return nil
}

func profile(u *domain.User) Profile {
	return Profile{
		ID:             u.ID(),
		Username:       u.Username().String(),
		Email:          u.Email().String(),
		EmailConfirmed: u.Email().Confirmed(),
		Role:           u.Role(),
		CreatedAt:      u.CreatedAt(),
		UpdatedAt:      u.UpdatedAt(),
		Records:        len(u.Records()),
	}
}
