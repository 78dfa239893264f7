package group

import (
	"context"
	"fmt"

	"github.com/wireline-chat/wireline-server/internal/membership"
	"github.com/wireline-chat/wireline-server/internal/user"
)

// Service wraps Repository with membership-cache invalidation, so a join/leave/create is never observed with a stale
// cache entry.
type Service struct {
	repo  Repository
	users user.Repository
	cache membership.Cache
}

// NewService creates a group service.
func NewService(repo Repository, users user.Repository, cache membership.Cache) *Service {
	return &Service{repo: repo, users: users, cache: cache}
}

// Create makes a new group with params.CreatorID as its sole initial member.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Group, error) {
	g, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	if err := s.touchAndInvalidate(ctx, g.ID, params.CreatorID); err != nil {
		return nil, err
	}
	return g, nil
}

// Join adds userID to group id's membership.
func (s *Service) Join(ctx context.Context, id, userID uint32) error {
	if err := s.repo.Join(ctx, id, userID); err != nil {
		return err
	}
	return s.touchAndInvalidate(ctx, id, userID)
}

// Leave removes userID from group id's membership.
func (s *Service) Leave(ctx context.Context, id, userID uint32) error {
	if err := s.repo.Leave(ctx, id, userID); err != nil {
		return err
	}
	return s.touchAndInvalidate(ctx, id, userID)
}

func (s *Service) touchAndInvalidate(ctx context.Context, groupID, userID uint32) error {
	if err := s.users.TouchGroupsUpdatedAt(ctx, userID); err != nil {
		return fmt.Errorf("touch groups_updated_at for %d: %w", userID, err)
	}
	if err := s.cache.InvalidateGroup(ctx, groupID); err != nil {
		return fmt.Errorf("invalidate group cache for %d: %w", groupID, err)
	}
	return nil
}

// Members returns group id's member ids, preferring the cache and falling back to the store on a miss.
func (s *Service) Members(ctx context.Context, id uint32) ([]uint32, error) {
	if ids, ok, err := s.cache.GetGroupMembers(ctx, id); err == nil && ok {
		return ids, nil
	}
	ids, err := s.repo.Members(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetGroupMembers(ctx, id, ids)
	return ids, nil
}

// Get returns a group by id, delegating to the store (groups themselves are not cached, only membership).
func (s *Service) Get(ctx context.Context, id uint32) (*Group, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForUser returns the ids of every group userID belongs to.
func (s *Service) ListForUser(ctx context.Context, userID uint32) ([]uint32, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Delete removes a group and invalidates its membership cache entry.
func (s *Service) Delete(ctx context.Context, id uint32) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.cache.InvalidateGroup(ctx, id)
}
