package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/orgchart/internal/clock"
	"github.com/smallbiznis/orgchart/internal/config"
	"github.com/smallbiznis/orgchart/internal/events"
	"github.com/smallbiznis/orgchart/internal/member/domain"
	"github.com/smallbiznis/orgchart/internal/member/repository"
	"github.com/smallbiznis/orgchart/internal/observability/metrics"
	"github.com/smallbiznis/orgchart/internal/orgtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	svc    domain.Service
	db     *gorm.DB
	repo   domain.Repository
	clock  *clock.FakeClock
	outbox *events.Outbox
}

func setupMemberService(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Member{}, &events.MemberEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC))
	roles, err := config.NewStaticRoleCatalogHolder(config.DefaultRoleCatalog())
	require.NoError(t, err)
	outbox := events.NewOutbox(events.OutboxParams{DB: db, GenID: node, Clock: fake})
	repo := repository.Provide()

	svc := New(Params{
		DB:        db,
		Log:       zaptest.NewLogger(t),
		GenID:     node,
		Repo:      repo,
		Clock:     fake,
		Roles:     roles,
		Publisher: outbox,
		Metrics:   metrics.NewNoop(),
	})

	return &fixture{svc: svc, db: db, repo: repo, clock: fake, outbox: outbox}
}

// seed inserts members one second apart so creation order is stable.
func (f *fixture) seed(t *testing.T, rows ...domain.Member) {
	t.Helper()
	for _, row := range rows {
		row := row
		if row.Email == "" {
			row.Email = row.ID + "@example.com"
		}
		if row.FullName == "" {
			row.FullName = "Member " + row.ID
		}
		row.IsActive = true
		row.CreatedAt = f.clock.Now()
		row.UpdatedAt = row.CreatedAt
		require.NoError(t, f.repo.Insert(context.Background(), f.db, &row))
		f.clock.Advance(time.Second)
	}
}

func ptr(s string) *string { return &s }

func (f *fixture) reportsTo(t *testing.T, id string) string {
	t.Helper()
	m, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	if m.ReportsTo == nil {
		return ""
	}
	return *m.ReportsTo
}

func (f *fixture) pendingEvents(t *testing.T) []events.MemberEvent {
	t.Helper()
	pending, err := f.outbox.Pending(context.Background(), 100)
	require.NoError(t, err)
	return pending
}

func TestCreateMember(t *testing.T) {
	f := setupMemberService(t)
	ctx := context.Background()
	f.seed(t, domain.Member{ID: "owner", Role: "owner"})

	created, err := f.svc.Create(ctx, domain.CreateMemberRequest{
		FullName:  "  Dana Reyes ",
		Email:     "Dana@Example.com",
		Role:      "manager",
		ReportsTo: ptr("owner"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Dana Reyes", created.FullName)
	assert.Equal(t, "dana@example.com", created.Email)
	assert.True(t, created.IsActive)
	require.NotNil(t, created.ReportsTo)
	assert.Equal(t, "owner", *created.ReportsTo)

	stored, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, stored.Email)

	pending := f.pendingEvents(t)
	require.Len(t, pending, 1)
	assert.Equal(t, events.EventMemberCreated, pending[0].EventType)
	assert.Equal(t, created.ID, pending[0].MemberID)
}

func TestCreateMemberDefaultsToLowestRole(t *testing.T) {
	f := setupMemberService(t)

	created, err := f.svc.Create(context.Background(), domain.CreateMemberRequest{FullName: "Sam", Email: "sam@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "staff", created.Role)
	assert.Nil(t, created.ReportsTo)
}

func TestCreateMemberValidation(t *testing.T) {
	f := setupMemberService(t)
	ctx := context.Background()
	f.seed(t, domain.Member{ID: "owner", Role: "owner", Email: "taken@example.com"})

	tests := []struct {
		name    string
		req     domain.CreateMemberRequest
		wantErr error
	}{
		{"blank name", domain.CreateMemberRequest{FullName: " ", Email: "a@example.com"}, domain.ErrInvalidName},
		{"bad email", domain.CreateMemberRequest{FullName: "A", Email: "not-an-email"}, domain.ErrInvalidEmail},
		{"display name email", domain.CreateMemberRequest{FullName: "A", Email: "A <a@example.com>"}, domain.ErrInvalidEmail},
		{"unknown role", domain.CreateMemberRequest{FullName: "A", Email: "a@example.com", Role: "intern"}, domain.ErrInvalidRole},
		{"unknown manager", domain.CreateMemberRequest{FullName: "A", Email: "a@example.com", ReportsTo: ptr("ghost")}, domain.ErrInvalidManager},
		{"duplicate email", domain.CreateMemberRequest{FullName: "A", Email: "TAKEN@example.com"}, domain.ErrDuplicateEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Empty(t, f.pendingEvents(t))
}

func TestListMembersPaginates(t *testing.T) {
	f := setupMemberService(t)
	ctx := context.Background()
	f.seed(t,
		domain.Member{ID: "a", Role: "owner"},
		domain.Member{ID: "b", Role: "manager", ReportsTo: ptr("a")},
		domain.Member{ID: "c", Role: "staff", ReportsTo: ptr("b")},
	)

	first, err := f.svc.List(ctx, domain.ListMemberRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Members, 2)
	assert.Equal(t, "a", first.Members[0].ID)
	assert.Equal(t, "b", first.Members[1].ID)
	assert.True(t, first.HasMore)

	second, err := f.svc.List(ctx, domain.ListMemberRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Members, 1)
	assert.Equal(t, "c", second.Members[0].ID)
	assert.False(t, second.HasMore)

	staff, err := f.svc.List(ctx, domain.ListMemberRequest{Role: "staff"})
	require.NoError(t, err)
	require.Len(t, staff.Members, 1)
	assert.Equal(t, "c", staff.Members[0].ID)
}

func TestGetMemberNotFound(t *testing.T) {
	f := setupMemberService(t)

	_, err := f.svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestSetActive(t *testing.T) {
	f := setupMemberService(t)
	ctx := context.Background()
	f.seed(t, domain.Member{ID: "a", Role: "owner"})

	updated, err := f.svc.SetActive(ctx, domain.SetActiveRequest{ID: "a", IsActive: false})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	pending := f.pendingEvents(t)
	require.Len(t, pending, 1)
	assert.Equal(t, events.EventMemberActiveChanged, pending[0].EventType)

	_, err = f.svc.SetActive(ctx, domain.SetActiveRequest{ID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, f.pendingEvents(t), 1)
}

func TestTreeEmpty(t *testing.T) {
	f := setupMemberService(t)

	tree, err := f.svc.Tree(context.Background())
	require.NoError(t, err)
	assert.Nil(t, tree)
}

func TestTreeIgnoresActiveFlag(t *testing.T) {
	f := setupMemberService(t)
	ctx := context.Background()
	f.seed(t,
		domain.Member{ID: "staff-1", Role: "staff", ReportsTo: ptr("owner")},
		domain.Member{ID: "owner", Role: "owner"},
	)
	_, err := f.svc.SetActive(ctx, domain.SetActiveRequest{ID: "staff-1", IsActive: false})
	require.NoError(t, err)

	tree, err := f.svc.Tree(ctx)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	assert.Equal(t, "owner", tree.Root.Member.ID)
	require.Len(t, tree.Root.Children, 1)
	assert.Equal(t, "staff-1", tree.Root.Children[0].Member.ID)
	assert.False(t, tree.Root.Children[0].Member.IsActive)
}

func TestReparentApplies(t *testing.T) {
	f := setupMemberService(t)
	ctx := context.Background()
	f.seed(t,
		domain.Member{ID: "owner", Role: "owner"},
		domain.Member{ID: "m1", Role: "manager", ReportsTo: ptr("owner")},
		domain.Member{ID: "m2", Role: "manager", ReportsTo: ptr("owner")},
		domain.Member{ID: "s1", Role: "staff", ReportsTo: ptr("m1")},
	)

	tree, err := f.svc.Reparent(ctx, domain.ReparentRequest{MemberID: "s1", ReportsTo: ptr("m2")})
	require.NoError(t, err)
	require.NotNil(t, tree)

	m2, ok := tree.Node("m2")
	require.True(t, ok)
	require.Len(t, m2.Children, 1)
	assert.Equal(t, "s1", m2.Children[0].Member.ID)

	m1, ok := tree.Node("m1")
	require.True(t, ok)
	assert.Empty(t, m1.Children)

	assert.Equal(t, "m2", f.reportsTo(t, "s1"))

	pending := f.pendingEvents(t)
	require.Len(t, pending, 1)
	assert.Equal(t, events.EventMemberReparented, pending[0].EventType)
	assert.Equal(t, "m1", pending[0].Payload["from"])
	assert.Equal(t, "m2", pending[0].Payload["to"])
}

func TestReparentPromote(t *testing.T) {
	f := setupMemberService(t)
	ctx := context.Background()
	f.seed(t,
		domain.Member{ID: "owner", Role: "owner"},
		domain.Member{ID: "m1", Role: "manager", ReportsTo: ptr("owner")},
	)

	tree, err := f.svc.Reparent(ctx, domain.ReparentRequest{MemberID: "m1", ReportsTo: nil})
	require.NoError(t, err)
	assert.Equal(t, "owner", tree.Root.Member.ID)
	require.Len(t, tree.Detached, 1)
	assert.Equal(t, "m1", tree.Detached[0].Member.ID)
	assert.Equal(t, "", f.reportsTo(t, "m1"))
}

func TestReparentRejectionsPersistNothing(t *testing.T) {
	f := setupMemberService(t)
	ctx := context.Background()
	f.seed(t,
		domain.Member{ID: "owner", Role: "owner"},
		domain.Member{ID: "m1", Role: "manager", ReportsTo: ptr("owner")},
		domain.Member{ID: "s1", Role: "staff", ReportsTo: ptr("m1")},
	)

	tests := []struct {
		name     string
		req      domain.ReparentRequest
		wantErr  error
		memberID string
		wantTo   string
	}{
		{"self", domain.ReparentRequest{MemberID: "m1", ReportsTo: ptr("m1")}, orgtree.ErrSelfParent, "m1", "owner"},
		{"descendant", domain.ReparentRequest{MemberID: "owner", ReportsTo: ptr("s1")}, orgtree.ErrCycleDetected, "owner", ""},
		{"direct report", domain.ReparentRequest{MemberID: "m1", ReportsTo: ptr("s1")}, orgtree.ErrCycleDetected, "m1", "owner"},
		{"unknown parent", domain.ReparentRequest{MemberID: "s1", ReportsTo: ptr("ghost")}, orgtree.ErrUnknownMember, "s1", "m1"},
		{"unknown member", domain.ReparentRequest{MemberID: "ghost", ReportsTo: ptr("owner")}, orgtree.ErrUnknownMember, "s1", "m1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := f.svc.Reparent(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, tree)
			assert.Equal(t, tt.wantTo, f.reportsTo(t, tt.memberID))
		})
	}

	assert.Empty(t, f.pendingEvents(t))
}

func TestValidateReparentIsDryRun(t *testing.T) {
	f := setupMemberService(t)
	ctx := context.Background()
	f.seed(t,
		domain.Member{ID: "owner", Role: "owner"},
		domain.Member{ID: "m1", Role: "manager", ReportsTo: ptr("owner")},
		domain.Member{ID: "m2", Role: "manager", ReportsTo: ptr("owner")},
	)

	require.NoError(t, f.svc.ValidateReparent(ctx, domain.ReparentRequest{MemberID: "m2", ReportsTo: ptr("m1")}))
	assert.Equal(t, "owner", f.reportsTo(t, "m2"))
	assert.Empty(t, f.pendingEvents(t))

	err := f.svc.ValidateReparent(ctx, domain.ReparentRequest{MemberID: "owner", ReportsTo: ptr("m1")})
	assert.ErrorIs(t, err, orgtree.ErrCycleDetected)

	err = f.svc.ValidateReparent(ctx, domain.ReparentRequest{MemberID: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
