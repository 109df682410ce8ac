package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orgchart/internal/clock"
	"github.com/smallbiznis/orgchart/internal/config"
	"github.com/smallbiznis/orgchart/internal/migration"
	"github.com/smallbiznis/orgchart/internal/observability"
	"github.com/smallbiznis/orgchart/internal/server"
	"github.com/smallbiznis/orgchart/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP, member domain and the outbox relay
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) *snowflake.Node {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		panic(err)
	}
	return node
}
