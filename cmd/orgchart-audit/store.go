package main

import (
	"context"
	"fmt"

	"github.com/smallbiznis/orgchart/internal/config"
	memberdomain "github.com/smallbiznis/orgchart/internal/member/domain"
	"github.com/smallbiznis/orgchart/internal/member/repository"
	"github.com/smallbiznis/orgchart/internal/orgtree"
	"github.com/smallbiznis/orgchart/pkg/db"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// openDB connects with the service's database settings. The returned func
// closes the pool.
func openDB(cfg config.Config) (*gorm.DB, func(), error) {
	dialector, err := db.Dialect(db.NewConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	conn, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard, TranslateError: true})
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, nil, err
	}
	return conn, func() { _ = sqlDB.Close() }, nil
}

func loadRoles() *config.RoleCatalogHolder {
	holder, err := config.NewRoleCatalogHolder()
	if err != nil {
		holder, _ = config.NewStaticRoleCatalogHolder(config.DefaultRoleCatalog())
	}
	return holder
}

// loadSnapshot reads every profile and the configured top-level role.
func loadSnapshot(ctx context.Context) ([]orgtree.Member, orgtree.Role, error) {
	conn, closeDB, err := openDB(config.Load())
	if err != nil {
		return nil, "", err
	}
	defer closeDB()

	members, err := repository.Provide().ListAll(ctx, conn)
	if err != nil {
		return nil, "", fmt.Errorf("load members: %w", err)
	}

	topLevel := orgtree.Role(loadRoles().Get().TopLevel())
	return memberdomain.Snapshots(members), topLevel, nil
}
