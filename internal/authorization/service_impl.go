package authorization

import (
	"context"
	_ "embed"
	"errors"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/orgchart/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectMember  = "member"
	ObjectOrgTree = "org_tree"
)

const (
	ActionMemberView     = "member.view"
	ActionMemberCreate   = "member.create"
	ActionMemberUpdate   = "member.update"
	ActionMemberReparent = "member.reparent"

	ActionOrgTreeView   = "org_tree.view"
	ActionOrgTreeExport = "org_tree.export"
)

// Permission tiers. Catalog roles are grouped into one of these so custom
// role names inherit a sensible permission set.
const (
	TierOwner   = "tier:owner"
	TierManager = "tier:manager"
	TierStaff   = "tier:staff"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Roles    *config.RoleCatalogHolder
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	roles    *config.RoleCatalogHolder
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	enforcer, err := newEnforcer(adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	enforcer, err := newEnforcer(nil)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func newEnforcer(adapter *gormadapter.Adapter) (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	var enforcer *casbin.SyncedEnforcer
	if adapter == nil {
		enforcer, err = casbin.NewSyncedEnforcer(m)
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m, adapter)
	}
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoBuildRoleLinks(true)
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		roles:    p.Roles,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actorID string, object string, action string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role, err := s.roleForMember(ctx, actorID)
	if err != nil {
		s.logDenied(actorID, object, action, err)
		return err
	}

	subject := "member:" + actorID
	if err := s.ensureGrouping(subject, s.tierFor(role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.logDenied(actorID, object, action, ErrForbidden)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) roleForMember(ctx context.Context, memberID string) (string, error) {
	var row struct {
		Role     string `gorm:"column:role"`
		IsActive bool   `gorm:"column:is_active"`
		Found    bool   `gorm:"column:found"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role, is_active, TRUE AS found
		 FROM profiles
		 WHERE id = ?
		 LIMIT 1`,
		memberID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	if !row.Found {
		return "", ErrInvalidActor
	}
	if !row.IsActive {
		return "", ErrForbidden
	}
	return strings.TrimSpace(row.Role), nil
}

// tierFor maps a catalog role onto a permission tier: the top-level role is
// owner, roles at the deepest level are staff and everything between is
// manager. Unknown roles get staff.
func (s *ServiceImpl) tierFor(role string) string {
	catalog := config.DefaultRoleCatalog()
	if s.roles != nil {
		catalog = s.roles.Get()
	}

	def, ok := catalog.Lookup(role)
	if !ok {
		return TierStaff
	}
	if def.TopLevel {
		return TierOwner
	}

	deepest := def.Level
	for _, r := range catalog.Roles {
		if r.Level > deepest {
			deepest = r.Level
		}
	}
	if def.Level >= deepest {
		return TierStaff
	}
	return TierManager
}

func (s *ServiceImpl) ensureGrouping(subject string, tier string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == tier {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, tier)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, tier)
	return err
}

func (s *ServiceImpl) logDenied(actorID, object, action string, err error) {
	if errors.Is(err, ErrForbidden) || errors.Is(err, ErrInvalidActor) {
		s.log.Info("authorization denied",
			zap.String("actor_id", actorID),
			zap.String("object", object),
			zap.String("action", action),
			zap.String("reason", err.Error()),
		)
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Staff permissions (read-only)
		{TierStaff, ObjectMember, ActionMemberView},
		{TierStaff, ObjectOrgTree, ActionOrgTreeView},

		// Manager permissions
		{TierManager, ObjectMember, ActionMemberView},
		{TierManager, ObjectMember, ActionMemberCreate},
		{TierManager, ObjectMember, ActionMemberReparent},
		{TierManager, ObjectOrgTree, ActionOrgTreeView},
		{TierManager, ObjectOrgTree, ActionOrgTreeExport},

		// Owner permissions
		{TierOwner, ObjectMember, ActionMemberView},
		{TierOwner, ObjectMember, ActionMemberCreate},
		{TierOwner, ObjectMember, ActionMemberUpdate},
		{TierOwner, ObjectMember, ActionMemberReparent},
		{TierOwner, ObjectOrgTree, ActionOrgTreeView},
		{TierOwner, ObjectOrgTree, ActionOrgTreeExport},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
