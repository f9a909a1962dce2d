// Package application wires storage, resource definitions and controllers
// into a ready registry. Both binaries start from Build.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/crud/internal/config"
	"github.com/JonMunkholm/crud/internal/crud"
	"github.com/JonMunkholm/crud/internal/storage"
)

// App holds the long-lived objects of one process.
type App struct {
	Engine    storage.Engine
	Resources *config.ResourceFile
	Registry  *crud.Registry
}

// Build connects to the database, loads the resource file and introspects
// every resource. Any misconfigured resource aborts startup.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	rf, err := config.LoadResources(cfg.Crud.ResourcesFile, cfg.Crud)
	if err != nil {
		return nil, err
	}

	eng, err := Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	reg, err := NewRegistry(ctx, eng, rf)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}

	return &App{Engine: eng, Resources: rf, Registry: reg}, nil
}

// Connect opens the storage engine described by db.
func Connect(ctx context.Context, db config.DatabaseConfig) (storage.Engine, error) {
	eng, err := storage.Open(ctx, db.Driver, db.URL, storage.PoolOptions{
		MaxOpenConns:    db.MaxConns,
		MaxIdleConns:    db.MinConns,
		ConnMaxLifetime: db.MaxConnLifetime,
		ConnMaxIdleTime: db.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", db.Driver, err)
	}
	return eng, nil
}

// NewRegistry builds one controller per resource. Errors from every
// resource are reported together.
func NewRegistry(ctx context.Context, eng storage.Engine, rf *config.ResourceFile) (*crud.Registry, error) {
	reg := crud.NewRegistry()
	var errs []error

	for _, res := range rf.Resources {
		table, err := eng.Table(res.Table)
		if err != nil {
			errs = append(errs, &crud.ConfigurationError{Resource: res.Name, Reason: "invalid table", Err: err})
			continue
		}

		ctrl, err := crud.New(ctx, crud.Config{
			Name:     res.Name,
			Title:    res.Title,
			Table:    table,
			Hidden:   res.Hidden,
			PageSize: res.PageSize,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := reg.Register(ctrl); err != nil {
			errs = append(errs, err)
			continue
		}

		schema := ctrl.Schema()
		slog.Debug("resource registered",
			"resource", ctrl.Name(),
			"table", schema.Table,
			"columns", len(schema.Columns),
			"primary_key", schema.PrimaryKey,
		)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return reg, nil
}

// Close releases the storage engine.
func (a *App) Close() error {
	return a.Engine.Close()
}
