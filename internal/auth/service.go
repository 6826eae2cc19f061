package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/fieldops/internal/localcache"
	"github.com/odyssey-erp/fieldops/internal/pin"
)

// Disposer releases the per-courier state held for a user.
type Disposer interface {
	Dispose(userID string)
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	hasher   *pin.Hasher
	cache    localcache.Scoper
	disposer Disposer
	logger   *slog.Logger
}

// NewService constructs a new Service. A nil hasher uses the sha256 scheme,
// and a nil cache keeps session snapshots in memory.
func NewService(repo Repository, hasher *pin.Hasher, cache localcache.Scoper, disposer Disposer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if hasher == nil {
		hasher, _ = pin.NewHasher(string(pin.SchemeSHA256))
	}
	if cache == nil {
		cache = localcache.NewMemoryStore(logger)
	}
	return &Service{repo: repo, hasher: hasher, cache: cache, disposer: disposer, logger: logger}
}

// Login authenticates by salesman id. Users with a stored PIN hash must
// present the matching PIN; users without one are admitted on id alone.
func (s *Service) Login(ctx context.Context, salesmanID, pinCode string) (*CourierSession, error) {
	salesmanID = strings.TrimSpace(salesmanID)
	if salesmanID == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.FindActiveBySalesmanID(ctx, salesmanID)
	if err != nil {
		return nil, err
	}
	if user.PinHash != "" && (pinCode == "" || !s.hasher.Verify(pinCode, user.PinHash)) {
		s.logger.Warn("login rejected", slog.String("salesman_id", salesmanID))
		return nil, ErrInvalidPin
	}

	sess := SessionOf(*user)
	s.cache.Scope(sess.UserID).Set(ctx, localcache.KeyUserSession, sess)
	s.logger.Info("user logged in", slog.String("user_id", sess.UserID), slog.String("role", string(sess.Role)))
	return &sess, nil
}

// Signup registers a new active user.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*User, error) {
	row := NewUser{
		SalesmanID:   strings.TrimSpace(in.SalesmanID),
		SalesmanName: strings.TrimSpace(in.SalesmanName),
		Email:        optional(in.Email),
		Phone:        optional(in.Phone),
	}
	if in.Pin != "" {
		digest, err := s.hasher.Hash(in.Pin)
		if err != nil {
			return nil, fmt.Errorf("auth: hash pin: %w", err)
		}
		row.PinHash = &digest
	}
	user, err := s.repo.Create(ctx, row)
	if err != nil {
		if !errors.Is(err, ErrDuplicateSalesman) {
			s.logger.Error("signup failed", slog.String("salesman_id", row.SalesmanID), slog.Any("error", err))
		}
		return nil, err
	}
	return user, nil
}

// Logout drops the cached session and releases the courier's order state.
func (s *Service) Logout(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	s.cache.Scope(userID).Remove(ctx, localcache.KeyUserSession)
	if s.disposer != nil {
		s.disposer.Dispose(userID)
	}
}

// Restore returns the cached session snapshot of a user, reloading it from
// the database on a cache miss.
func (s *Service) Restore(ctx context.Context, userID string) (*CourierSession, error) {
	store := s.cache.Scope(userID)
	var sess CourierSession
	if store.Get(ctx, localcache.KeyUserSession, &sess) && sess.UserID == userID {
		return &sess, nil
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess = SessionOf(*user)
	store.Set(ctx, localcache.KeyUserSession, sess)
	return &sess, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
