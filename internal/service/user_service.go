package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
	"github.com/sreesaivardhan/SecureGov-sub000/internal/repository"
)

const directoryCacheTTL = 5 * time.Minute

// UserService is the identity directory: it keeps the email -> user_id
// mapping fresh and resolves share targets.
type UserService interface {
	// Sync upserts the caller's directory record and bumps last_login_at.
	// displayName is optional profile data from the client.
	Sync(ctx context.Context, principal *models.Principal, displayName string) (*models.User, error)
	LookupByEmail(ctx context.Context, email string) (*models.User, error)
}

// DirectoryCache is the slice of db.RedisDB the directory uses for
// lookup-by-email. Nil disables caching; every lookup hits the repository.
type DirectoryCache interface {
	SetCache(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetCache(ctx context.Context, key string, dest interface{}) error
	InvalidateCache(ctx context.Context, pattern string) error
}

type userService struct {
	userRepo repository.UserRepository
	cache    DirectoryCache
}

func NewUserService(userRepo repository.UserRepository, cache DirectoryCache) UserService {
	return &userService{userRepo: userRepo, cache: cache}
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

func lookupCacheKey(email string) string {
	return "user:email:" + email
}

func (s *userService) Sync(ctx context.Context, principal *models.Principal, displayName string) (*models.User, error) {
	user := &models.User{
		ID:          principal.UserID,
		Email:       normalizeEmail(principal.Email),
		DisplayName: strings.TrimSpace(displayName),
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.InvalidateCache(ctx, lookupCacheKey(user.Email)); err != nil {
			log.Printf("[User] cache invalidation failed for %s: %v", user.Email, err)
		}
	}
	return s.userRepo.FindByID(ctx, principal.UserID)
}

func (s *userService) LookupByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, validationError(ErrRequiredField, "email is required")
	}
	if s.cache != nil {
		var cached models.User
		if err := s.cache.GetCache(ctx, lookupCacheKey(email), &cached); err == nil {
			return &cached, nil
		}
	}
	user, err := s.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetCache(ctx, lookupCacheKey(email), user, directoryCacheTTL); err != nil {
			log.Printf("[User] cache write failed for %s: %v", email, err)
		}
	}
	return user, nil
}
