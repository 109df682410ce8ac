package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgchart/internal/clock"
	"github.com/smallbiznis/orgchart/internal/config"
	"github.com/smallbiznis/orgchart/internal/events"
	"github.com/smallbiznis/orgchart/internal/lock"
	"github.com/smallbiznis/orgchart/internal/member/domain"
	"github.com/smallbiznis/orgchart/internal/observability/logger"
	"github.com/smallbiznis/orgchart/internal/observability/metrics"
	"github.com/smallbiznis/orgchart/internal/orgtree"
	"github.com/smallbiznis/orgchart/pkg/db"
	"github.com/smallbiznis/orgchart/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	reparentLockKey = "orgchart:reparent"
	reparentLockTTL = 10 * time.Second
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Clock     clock.Clock
	Roles     *config.RoleCatalogHolder
	Publisher events.Publisher `optional:"true"`
	Locker    *lock.Locker     `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	clock     clock.Clock
	roles     *config.RoleCatalogHolder
	publisher events.Publisher
	locker    *lock.Locker
	metrics   *metrics.Metrics

	// reparentMu serializes moves inside this process; locker covers
	// the other replicas.
	reparentMu sync.Mutex
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("member.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		clock:     c,
		roles:     p.Roles,
		publisher: p.Publisher,
		locker:    p.Locker,
		metrics:   p.Metrics,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListMemberRequest) (domain.ListMemberResponse, error) {
	page := pagination.Pagination{PageToken: strings.TrimSpace(req.PageToken), PageSize: req.PageSize}
	filter := domain.ListMemberFilter{
		Role:       strings.TrimSpace(req.Role),
		ActiveOnly: req.ActiveOnly,
	}

	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListMemberResponse{}, err
	}

	items, pageInfo, err := pagination.BuildCursorPageInfo(items, page.Limit(), func(m *domain.Member) pagination.Cursor {
		return pagination.Cursor{
			ID:        m.ID,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return domain.ListMemberResponse{}, err
	}

	members := make([]domain.Member, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		members = append(members, *item)
	}

	return domain.ListMemberResponse{PageInfo: pageInfo, Members: members}, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Member, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Member{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Member{}, err
	}
	if item == nil {
		return domain.Member{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateMemberRequest) (domain.Member, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return domain.Member{}, domain.ErrInvalidName
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.Member{}, domain.ErrInvalidEmail
	}

	catalog := s.catalog()
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = lowestRole(catalog)
	}
	if !catalog.Has(role) {
		return domain.Member{}, domain.ErrInvalidRole
	}

	reportsTo := normalizeParent(req.ReportsTo)

	now := s.clock.Now()
	member := domain.Member{
		ID:        s.genID.Generate().String(),
		FullName:  name,
		Email:     email,
		Role:      role,
		ReportsTo: reportsTo,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if reportsTo != nil {
			manager, err := s.repo.FindByID(ctx, tx, *reportsTo)
			if err != nil {
				return err
			}
			if manager == nil {
				return domain.ErrInvalidManager
			}
		}

		if err := s.repo.Insert(ctx, tx, &member); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateEmail
			}
			return err
		}

		return s.publish(ctx, tx, events.Event{
			MemberID: member.ID,
			Type:     events.EventMemberCreated,
			Payload: map[string]any{
				"role":       member.Role,
				"reports_to": stringOrNil(member.ReportsTo),
			},
		})
	})
	if err != nil {
		return domain.Member{}, err
	}

	s.metrics.RecordMemberWrite(ctx, "create")
	logger.WithContext(ctx, s.log).Info("member created",
		zap.String("member_id", member.ID),
		zap.String("role", member.Role),
	)
	return member, nil
}

func (s *Service) SetActive(ctx context.Context, req domain.SetActiveRequest) (domain.Member, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return domain.Member{}, domain.ErrInvalidID
	}

	var updated *domain.Member
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateActive(ctx, tx, id, req.IsActive, s.clock.Now()); err != nil {
			return err
		}
		if err := s.publish(ctx, tx, events.Event{
			MemberID: id,
			Type:     events.EventMemberActiveChanged,
			Payload:  map[string]any{"is_active": req.IsActive},
		}); err != nil {
			return err
		}

		item, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return domain.Member{}, err
	}
	if updated == nil {
		return domain.Member{}, domain.ErrNotFound
	}

	s.metrics.RecordMemberWrite(ctx, "set_active")
	return *updated, nil
}

func (s *Service) Tree(ctx context.Context) (*orgtree.Tree, error) {
	members, err := s.repo.ListAll(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return s.buildTree(ctx, domain.Snapshots(members)), nil
}

func (s *Service) ValidateReparent(ctx context.Context, req domain.ReparentRequest) error {
	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		return domain.ErrInvalidID
	}

	members, err := s.repo.ListAll(ctx, s.db)
	if err != nil {
		return err
	}
	return orgtree.ValidateReparent(memberID, parentID(req.ReportsTo), domain.Snapshots(members))
}

// Reparent validates and persists a move under the reparent lock, then
// returns the tree derived from the updated snapshot. Rejected moves persist
// nothing.
func (s *Service) Reparent(ctx context.Context, req domain.ReparentRequest) (*orgtree.Tree, error) {
	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		return nil, domain.ErrInvalidID
	}
	newParent := normalizeParent(req.ReportsTo)

	s.reparentMu.Lock()
	defer s.reparentMu.Unlock()

	var snapshot []orgtree.Member
	err := s.locker.WithLock(ctx, reparentLockKey, reparentLockTTL, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			members, err := s.repo.ListAll(ctx, tx)
			if err != nil {
				return err
			}
			snapshot = domain.Snapshots(members)

			if err := orgtree.ValidateReparent(memberID, parentID(newParent), snapshot); err != nil {
				return err
			}

			var previous string
			for i := range snapshot {
				if snapshot[i].ID == memberID {
					previous = snapshot[i].ReportsTo
					snapshot[i].ReportsTo = parentID(newParent)
					break
				}
			}

			if err := s.repo.UpdateReportsTo(ctx, tx, memberID, newParent, s.clock.Now()); err != nil {
				return err
			}

			return s.publish(ctx, tx, events.Event{
				MemberID: memberID,
				Type:     events.EventMemberReparented,
				Payload: map[string]any{
					"from": nilIfEmpty(previous),
					"to":   stringOrNil(newParent),
				},
			})
		})
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockHeld) {
			err = domain.ErrReparentInProgress
		}
		s.metrics.RecordReparent(ctx, reparentResult(err))
		logger.WithContext(ctx, s.log).Info("reparent rejected",
			zap.String("member_id", memberID),
			zap.String("reason", reparentResult(err)),
		)
		return nil, err
	}

	s.metrics.RecordReparent(ctx, reparentResult(nil))
	logger.WithContext(ctx, s.log).Info("member reparented",
		zap.String("member_id", memberID),
		zap.String("reports_to", parentID(newParent)),
	)
	return s.buildTree(ctx, snapshot), nil
}

func (s *Service) buildTree(ctx context.Context, members []orgtree.Member) *orgtree.Tree {
	tree := orgtree.BuildTree(members, orgtree.WithTopLevelRole(orgtree.Role(s.catalog().TopLevel())))
	if tree == nil {
		return nil
	}

	excluded := len(tree.Excluded) > 0
	s.metrics.RecordTreeBuild(ctx, tree.Len(), excluded)
	if excluded || len(tree.Duplicates) > 0 || len(tree.Detached) > 0 {
		logger.WithContext(ctx, s.log).Warn("org tree has unreachable members",
			zap.Int("detached", len(tree.Detached)),
			zap.Strings("excluded", tree.Excluded),
			zap.Strings("duplicates", tree.Duplicates),
		)
	}
	return tree
}

func (s *Service) publish(ctx context.Context, tx *gorm.DB, event events.Event) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishTx(ctx, tx, event)
}

func (s *Service) catalog() config.RoleCatalog {
	if s.roles == nil {
		return config.DefaultRoleCatalog()
	}
	return s.roles.Get()
}

// lowestRole is the role with the deepest level, used when none is given.
func lowestRole(c config.RoleCatalog) string {
	code, level := "", -1
	for _, r := range c.Roles {
		if r.Level > level {
			code, level = r.Code, r.Level
		}
	}
	return code
}

func reparentResult(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, orgtree.ErrSelfParent):
		return "self_parent"
	case errors.Is(err, orgtree.ErrCycleDetected):
		return "cycle_detected"
	case errors.Is(err, orgtree.ErrUnknownMember):
		return "unknown_member"
	case errors.Is(err, domain.ErrReparentInProgress):
		return "busy"
	default:
		return "error"
	}
}

func normalizeParent(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func parentID(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func stringOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nilIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
