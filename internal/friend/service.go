package friend

import (
	"context"
	"fmt"

	"github.com/wireline-chat/wireline-server/internal/membership"
	"github.com/wireline-chat/wireline-server/internal/user"
)

// Service wraps Repository with cache invalidation and contact-list bookkeeping, so that callers never forget to
// invalidate before returning to the client.
type Service struct {
	repo  Repository
	users user.Repository
	cache membership.Cache
}

// NewService creates a friendship service.
func NewService(repo Repository, users user.Repository, cache membership.Cache) *Service {
	return &Service{repo: repo, users: users, cache: cache}
}

// Add connects userID and friendID, invalidating both sides' friend caches before returning.
func (s *Service) Add(ctx context.Context, userID, friendID uint32) error {
	if err := s.repo.Add(ctx, userID, friendID); err != nil {
		return err
	}
	return s.touchAndInvalidate(ctx, userID, friendID)
}

// Remove disconnects userID and friendID, invalidating both sides' friend caches before returning.
func (s *Service) Remove(ctx context.Context, userID, friendID uint32) error {
	if err := s.repo.Remove(ctx, userID, friendID); err != nil {
		return err
	}
	return s.touchAndInvalidate(ctx, userID, friendID)
}

func (s *Service) touchAndInvalidate(ctx context.Context, userID, friendID uint32) error {
	for _, id := range [2]uint32{userID, friendID} {
		if err := s.users.TouchFriendsUpdatedAt(ctx, id); err != nil {
			return fmt.Errorf("touch friends_updated_at for %d: %w", id, err)
		}
		if err := s.cache.InvalidateUser(ctx, id); err != nil {
			return fmt.Errorf("invalidate friend cache for %d: %w", id, err)
		}
	}
	return nil
}

// List returns userID's friend ids, preferring the membership cache and falling back to the authoritative store on a
// miss.
func (s *Service) List(ctx context.Context, userID uint32) ([]uint32, error) {
	if ids, ok, err := s.cache.GetFriends(ctx, userID); err == nil && ok {
		return ids, nil
	}
	ids, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetFriends(ctx, userID, ids)
	return ids, nil
}

// Info returns display information for a specific friend, authoritative (not cached), since it serves a
// security-adjacent lookup.
func (s *Service) Info(ctx context.Context, userID, friendID uint32) (*Info, error) {
	return s.repo.Info(ctx, userID, friendID)
}
