// Package app builds the storage and notification backends selected by configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/config"
	"github.com/mamadbah2/milkwatch/internal/repository"
	"github.com/mamadbah2/milkwatch/internal/repository/csvlog"
	"github.com/mamadbah2/milkwatch/internal/repository/memory"
	"github.com/mamadbah2/milkwatch/internal/repository/mongodb"
	"github.com/mamadbah2/milkwatch/internal/repository/postgres"
	"github.com/mamadbah2/milkwatch/internal/repository/sheets"
	"github.com/mamadbah2/milkwatch/internal/service/notification"
	whatsappclient "github.com/mamadbah2/milkwatch/pkg/clients/whatsapp"
)

// OpenStore connects the configured event store.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.EventStore, error) {
	switch cfg.Store.Driver {
	case config.DriverMongoDB:
		return mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, logger.Named("repo.mongodb"))
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.Postgres.DSN, cfg.Server.Debug, logger.Named("repo.postgres"))
	case config.DriverMemory:
		logger.Warn("using in-memory event store, data is lost on exit")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// OpenAuditSink builds the configured audit sink.
func OpenAuditSink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.AuditSink, error) {
	switch cfg.Audit.Sink {
	case config.AuditCSV:
		return csvlog.NewSink(cfg.Audit.OutputDir, logger.Named("audit.csv")), nil
	case config.AuditSheets:
		repo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named("repo.sheets"))
		if err != nil {
			return nil, err
		}
		return sheets.NewAuditSink(repo, cfg.Audit.SheetRange, logger.Named("audit.sheets")), nil
	default:
		return nil, fmt.Errorf("unsupported audit sink %q", cfg.Audit.Sink)
	}
}

// NewNotifier returns a WhatsApp notifier, or a log-only one when WhatsApp is
// not configured.
func NewNotifier(cfg *config.Config, logger *zap.Logger) *notification.Notifier {
	named := logger.Named("svc.notification")
	if !cfg.WhatsApp.Enabled() {
		logger.Warn("whatsapp token missing, notifications disabled")
		return notification.NewNotifier(nil, "", named)
	}
	return notification.NewNotifier(whatsappclient.NewClient(cfg.WhatsApp), cfg.WhatsApp.Recipient, named)
}
