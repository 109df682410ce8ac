package migration

import (
	"github.com/smallbiznis/orgchart/internal/config"
	"github.com/smallbiznis/orgchart/internal/events"
	memberdomain "github.com/smallbiznis/orgchart/internal/member/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.RunMigrations {
			log.Info("migrations disabled")
			return nil
		}
		return Apply(conn, cfg.DBType)
	}),
)

// Apply runs the embedded SQL migrations on postgres. Other dialects get the
// schema from the gorm models.
func Apply(conn *gorm.DB, dbType string) error {
	if dbType != "postgres" {
		return conn.AutoMigrate(&memberdomain.Member{}, &events.MemberEvent{})
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}
