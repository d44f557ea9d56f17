// Package app assembles repositories and services on top of a database
// connection. Both the API server and approvalctl start from here.
package app

import (
	"context"
	"fmt"

	"approvalflow/internal/clock"
	"approvalflow/internal/config"
	"approvalflow/internal/database"
	"approvalflow/internal/directory"
	"approvalflow/internal/logger"
	"approvalflow/internal/repository"
	"approvalflow/internal/service"

	"gorm.io/gorm"
)

// App holds the wired dependency graph (Repository -> Service)
type App struct {
	Config *config.Config
	Log    *logger.Logger
	DB     *gorm.DB

	Roles repository.RoleRepository

	Approvals service.ApprovalService
	Comments  service.CommentService
	Monitor   service.MonitorService
	Audit     service.AuditService
	Users     service.UserService
}

// New connects to the database, migrates and seeds it when migrate is set,
// and builds every service. events may be nil.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, events service.Publisher, migrate bool) (*App, error) {
	db, err := database.NewConnection(cfg.DSN(), log)
	if err != nil {
		return nil, err
	}

	tx := repository.NewTransactionManager(db)
	roleRepo := repository.NewRoleRepository(db)
	userRepo := repository.NewUserRepository(db)

	if migrate {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
		if err := database.SeedRBAC(ctx, tx, roleRepo); err != nil {
			return nil, fmt.Errorf("failed to seed roles: %w", err)
		}
		log.Info().Msg("schema migrated and roles seeded")
	}

	clk := clock.New()
	deps := service.ApprovalDeps{
		Requests:     repository.NewApprovalRepository(db),
		Comments:     repository.NewCommentRepository(db),
		Audit:        repository.NewAuditRepository(db),
		Tx:           tx,
		Directory:    directory.New(userRepo, roleRepo),
		Clock:        clk,
		Events:       events,
		Log:          log,
		CancelWindow: cfg.CancelWindow,
	}

	return &App{
		Config:    cfg,
		Log:       log,
		DB:        db,
		Roles:     roleRepo,
		Approvals: service.NewApprovalService(deps),
		Comments:  service.NewCommentService(deps),
		Monitor: service.NewMonitorService(service.MonitorDeps{
			Requests:     deps.Requests,
			Clock:        clk,
			Events:       events,
			Log:          log,
			Interval:     cfg.MonitorInterval,
			SweepTimeout: cfg.SweepTimeout,
		}),
		Audit: service.NewAuditService(deps.Audit),
		Users: service.NewUserService(userRepo, []byte(cfg.JWTSecret)),
	}, nil
}

// Close releases the connection pool
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
