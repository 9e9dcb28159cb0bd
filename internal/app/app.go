// Package app wires configuration, storage and services into the copyflat commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"copyflat/internal/config"
	"copyflat/internal/domain"
	"copyflat/internal/service"
	"copyflat/internal/storage"
)

// App holds the state shared by every command.
type App struct {
	cfg     *config.Config
	db      *storage.DB
	convert *service.ConvertService
}

// New loads the config at cfgPath and opens the state store.
func New(cfgPath string, emitter service.EventEmitter) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	db, err := storage.New(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	if emitter == nil {
		emitter = service.LogEmitter{}
	}
	return &App{
		cfg:     cfg,
		db:      db,
		convert: service.NewConvertService(cfg, storage.NewCatalogStore(db), storage.NewRunStore(db), emitter),
	}, nil
}

// Service returns the conversion service.
func (a *App) Service() *service.ConvertService { return a.convert }

// Close stops watchers, waits for running conversions and closes the state store.
func (a *App) Close() error {
	a.convert.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.convert.WaitRunning(ctx)
	return a.db.Close()
}

// Compile compiles the copybook into schema artifacts.
func (a *App) Compile(ctx context.Context) error {
	res, err := a.convert.Compile(ctx)
	if err != nil {
		return err
	}
	log.Printf("compile: %d table(s) written to %s", len(res.Tables), a.cfg.SchemaDir)
	return nil
}

// Convert decodes every mapped flat file.
func (a *App) Convert(ctx context.Context) error {
	res, err := a.convert.Convert(ctx, service.TriggerCLI)
	return conversionError(res, err)
}

// Run compiles, then converts.
func (a *App) Run(ctx context.Context) error {
	res, err := a.convert.Run(ctx, service.TriggerCLI)
	return conversionError(res, err)
}

// Watch runs once, then follows the schedule and the watched files until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	if a.cfg.Schedule == "" && !a.cfg.Watch {
		return fmt.Errorf("watch: config sets neither schedule nor watch")
	}
	if err := a.Run(ctx); err != nil {
		log.Printf("watch: initial run: %v", err)
	}
	a.convert.StartWatchers(ctx)
	<-ctx.Done()
	log.Println("watch: shutting down")
	return nil
}

func conversionError(res *service.ConvertResult, err error) error {
	if err != nil {
		return err
	}
	if res.Run.Status != domain.RunSuccess {
		return fmt.Errorf("conversion finished with status %s", res.Run.Status)
	}
	return nil
}

// Init writes a starter config to path. An existing file is never overwritten.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("init: %s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("init: %w", err)
	}
	if err := config.WriteFile(config.Sample(), path); err != nil {
		return err
	}
	log.Printf("init: wrote %s", path)
	return nil
}
