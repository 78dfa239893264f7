package group

import (
	"context"
	"testing"

	"github.com/wireline-chat/wireline-server/internal/membership"
	"github.com/wireline-chat/wireline-server/internal/user"
)

type fakeRepo struct {
	groups  map[uint32]*Group
	members map[uint32]map[uint32]bool
	nextID  uint32
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{groups: make(map[uint32]*Group), members: make(map[uint32]map[uint32]bool)}
}

func (f *fakeRepo) Create(_ context.Context, params CreateParams) (*Group, error) {
	f.nextID++
	g := &Group{ID: f.nextID, Title: params.Title, CreatorID: params.CreatorID}
	f.groups[g.ID] = g
	f.members[g.ID] = map[uint32]bool{params.CreatorID: true}
	return g, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uint32) (*Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

func (f *fakeRepo) Members(_ context.Context, id uint32) ([]uint32, error) {
	var ids []uint32
	for uid := range f.members[id] {
		ids = append(ids, uid)
	}
	return ids, nil
}

func (f *fakeRepo) Join(_ context.Context, id, userID uint32) error {
	if f.members[id][userID] {
		return ErrAlreadyMember
	}
	if f.members[id] == nil {
		f.members[id] = make(map[uint32]bool)
	}
	f.members[id][userID] = true
	return nil
}

func (f *fakeRepo) Leave(_ context.Context, id, userID uint32) error {
	if !f.members[id][userID] {
		return ErrNotMember
	}
	delete(f.members[id], userID)
	return nil
}

func (f *fakeRepo) IsMember(_ context.Context, id, userID uint32) (bool, error) {
	return f.members[id][userID], nil
}

func (f *fakeRepo) ListForUser(_ context.Context, userID uint32) ([]uint32, error) {
	var ids []uint32
	for gid, members := range f.members {
		if members[userID] {
			ids = append(ids, gid)
		}
	}
	return ids, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uint32) error {
	if _, ok := f.groups[id]; !ok {
		return ErrNotFound
	}
	delete(f.groups, id)
	delete(f.members, id)
	return nil
}

type fakeUsers struct{ touched map[uint32]int }

func (f *fakeUsers) Create(context.Context, user.CreateParams) (uint32, error) { return 0, nil }
func (f *fakeUsers) GetByID(context.Context, uint32) (*user.User, error)       { return nil, nil }
func (f *fakeUsers) GetByUsername(context.Context, string) (*user.User, error) { return nil, nil }
func (f *fakeUsers) UpdatePasswordHash(context.Context, uint32, string) error  { return nil }
func (f *fakeUsers) TouchFriendsUpdatedAt(context.Context, uint32) error       { return nil }
func (f *fakeUsers) TouchGroupsUpdatedAt(_ context.Context, id uint32) error {
	if f.touched == nil {
		f.touched = make(map[uint32]int)
	}
	f.touched[id]++
	return nil
}
func (f *fakeUsers) Delete(context.Context, uint32) error { return nil }

func TestServiceCreateAutoInsertsCreator(t *testing.T) {
	t.Parallel()
	svc := NewService(newFakeRepo(), &fakeUsers{}, membership.NewMemoryCache())
	ctx := context.Background()

	g, err := svc.Create(ctx, CreateParams{Title: "general", CreatorID: 1})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	members, err := svc.Members(ctx, g.ID)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(members) != 1 || members[0] != 1 {
		t.Errorf("Members() = %v, want [1]", members)
	}
}

func TestServiceJoinInvalidatesCache(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	cache := membership.NewMemoryCache()
	svc := NewService(repo, &fakeUsers{}, cache)
	ctx := context.Background()

	g, _ := svc.Create(ctx, CreateParams{Title: "g", CreatorID: 1})
	_, _ = svc.Members(ctx, g.ID)

	if err := svc.Join(ctx, g.ID, 2); err != nil {
		t.Fatalf("Join() error = %v", err)
	}

	if _, ok, _ := cache.GetGroupMembers(ctx, g.ID); ok {
		t.Error("expected group cache invalidated after join")
	}

	members, err := svc.Members(ctx, g.ID)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("Members() = %v, want 2 entries", members)
	}
}

func TestServiceLeaveErrorsWhenNotMember(t *testing.T) {
	t.Parallel()
	svc := NewService(newFakeRepo(), &fakeUsers{}, membership.NewMemoryCache())
	ctx := context.Background()
	g, _ := svc.Create(ctx, CreateParams{Title: "g", CreatorID: 1})

	if err := svc.Leave(ctx, g.ID, 99); err != ErrNotMember {
		t.Fatalf("Leave() error = %v, want ErrNotMember", err)
	}
}
