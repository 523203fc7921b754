package provider

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BartekS5/docshift/internal/config"
	"github.com/BartekS5/docshift/pkg/database"
	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/BartekS5/docshift/pkg/models"
	"github.com/BartekS5/docshift/pkg/store"
	"github.com/BartekS5/docshift/pkg/store/memstore"
	"github.com/BartekS5/docshift/pkg/store/mongostore"
	"github.com/BartekS5/docshift/pkg/store/sqlstore"
)

// OpenStore connects the backend described by pc.
func OpenStore(pc config.ProviderConfig) (store.Store, error) {
	kind, err := models.ParseKind(pc.Kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.KindMongo:
		client, err := database.ConnectMongo(pc.DSN)
		if err != nil {
			return nil, err
		}
		db := pc.Database
		if db == "" {
			db = config.DefaultMongoDatabase
		}
		return mongostore.New(client, db, true), nil

	case models.KindSQL:
		dialect, err := sqlstore.ParseDialect(pc.Dialect)
		if err != nil {
			return nil, err
		}
		var open func(string) (*sql.DB, error)
		if dialect == sqlstore.DialectSQLServer {
			open = database.ConnectSQL
		} else {
			open = database.OpenSQLite
		}
		db, err := open(pc.DSN)
		if err != nil {
			return nil, err
		}
		s, err := sqlstore.New(db, dialect)
		if err != nil {
			db.Close()
			return nil, err
		}
		return s, nil

	default:
		return memstore.New(pc.CacheSize), nil
	}
}

// Open builds a registry from configuration. Providers that fail to connect
// are closed and reported; nothing is registered in that case.
func Open(ctx context.Context, cfg *config.Config) (*Registry, error) {
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reg := NewRegistry()
	for _, pc := range cfg.Providers {
		s, err := OpenStore(pc)
		if err != nil {
			_ = reg.Close(ctx)
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		if err := reg.Register(pc.Name, s, WithWriteLimit(pc.WritesPerSecond)); err != nil {
			_ = s.Close(ctx)
			_ = reg.Close(ctx)
			return nil, err
		}
	}

	if name := cfg.DefaultProviderName(); name != "" {
		if err := reg.SetDefault(name); err != nil {
			_ = reg.Close(ctx)
			return nil, err
		}
	}
	if reg.Len() == 0 {
		logger.Warn("No database configured; operations will return empty results.")
	}
	return reg, nil
}
