package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgchart/internal/clock"
	"github.com/smallbiznis/orgchart/internal/config"
	"github.com/smallbiznis/orgchart/internal/events"
	memberdomain "github.com/smallbiznis/orgchart/internal/member/domain"
	"github.com/smallbiznis/orgchart/internal/member/repository"
	"github.com/smallbiznis/orgchart/internal/member/service"
	"github.com/smallbiznis/orgchart/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errAlreadySeeded = errors.New("profiles already exist")

func newSeedOwnerCmd() *cobra.Command {
	var (
		name  string
		email string
	)

	cmd := &cobra.Command{
		Use:   "seed-owner",
		Short: "Create the first member with the top-level role on an empty chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			conn, closeDB, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			if cfg.RunMigrations {
				if err := migration.Apply(conn, cfg.DBType); err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
			}

			node, err := snowflake.NewNode(cfg.NodeID)
			if err != nil {
				return err
			}

			owner, err := seedOwner(cmd.Context(), conn, node, loadRoles(), zap.NewNop(), name, email)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), owner)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// seedOwner creates the first profile so the API has an actor to authorize.
// It refuses once any profile exists.
func seedOwner(ctx context.Context, conn *gorm.DB, node *snowflake.Node, roles *config.RoleCatalogHolder, log *zap.Logger, name, email string) (memberdomain.Member, error) {
	repo := repository.Provide()

	existing, err := repo.ListAll(ctx, conn)
	if err != nil {
		return memberdomain.Member{}, fmt.Errorf("load members: %w", err)
	}
	if len(existing) > 0 {
		return memberdomain.Member{}, errAlreadySeeded
	}

	sysClock := clock.SystemClock{}
	svc := service.New(service.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      repo,
		Clock:     sysClock,
		Roles:     roles,
		Publisher: events.NewOutbox(events.OutboxParams{DB: conn, GenID: node, Clock: sysClock}),
	})

	return svc.Create(ctx, memberdomain.CreateMemberRequest{
		FullName: name,
		Email:    email,
		Role:     roles.Get().TopLevel(),
	})
}
