package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"copyflat/internal/config"
	"copyflat/internal/copybook"
	"copyflat/internal/dbclient"
	"copyflat/internal/decode"
	"copyflat/internal/domain"
	"copyflat/internal/etl"
	"copyflat/internal/mapping"
	"copyflat/internal/schemafile"
	"copyflat/internal/secret"
	"copyflat/internal/storage"
	"copyflat/internal/textio"
)

// ─────────────────────────────────────────────────────────────
// Convert Service — compile, convert, schedule and watch
// ─────────────────────────────────────────────────────────────

// Run triggers recorded on run logs.
const (
	TriggerCLI      = "cli"
	TriggerSchedule = "schedule"
	TriggerWatch    = "file_watch"
	TriggerMCP      = "mcp"
)

// ErrAlreadyRunning is returned when a conversion for the same output tree is in progress.
var ErrAlreadyRunning = errors.New("conversion already running")

// ConvertService runs compilations and conversions for one config.
// It is decoupled from its front end via the EventEmitter interface.
type ConvertService struct {
	cfg         *config.Config
	catalogs    *storage.CatalogStore
	runs        *storage.RunStore
	emitter     EventEmitter
	secrets     secret.Stores
	runningJobs runningJobsGuard

	// watcher / cron lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewConvertService creates a ConvertService. The stores may be nil, in which
// case catalogs and runs are not persisted.
func NewConvertService(
	cfg *config.Config,
	catalogs *storage.CatalogStore,
	runs *storage.RunStore,
	emitter EventEmitter,
) *ConvertService {
	if emitter == nil {
		emitter = LogEmitter{}
	}
	return &ConvertService{
		cfg:      cfg,
		catalogs: catalogs,
		runs:     runs,
		emitter:  emitter,
		secrets:  secret.DefaultStores(),
	}
}

// Config returns the service's configuration.
func (s *ConvertService) Config() *config.Config { return s.cfg }

// ── Compile ────────────────────────────────────────────────

// CompileResult summarizes one compilation.
type CompileResult struct {
	Tables    []storage.TableSummary `json:"tables"`
	Artifacts []string               `json:"artifacts"`
}

// Compile compiles the copybook, writes the schema artifacts and persists the catalog.
// It shares the conversion guard so artifacts never change under a running conversion.
func (s *ConvertService) Compile(ctx context.Context) (*CompileResult, error) {
	key, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer s.runningJobs.Unlock(key)
	return s.compile(ctx)
}

func (s *ConvertService) compile(ctx context.Context) (*CompileResult, error) {
	text, err := textio.ReadFile(s.cfg.Copybook, textio.Ignore)
	if err != nil {
		return nil, fmt.Errorf("read copybook: %w", err)
	}
	return s.compileText(ctx, text)
}

func (s *ConvertService) compileText(ctx context.Context, text string) (*CompileResult, error) {
	compiled := copybook.Compile(text)
	schemas := copybook.Schemas(compiled)

	set, err := schemafile.WriteDir(s.cfg.SchemaDir, schemas)
	if err != nil {
		return nil, err
	}

	cat := domain.NewCatalog(schemas)
	if s.catalogs != nil {
		if err := s.catalogs.SaveCatalog(s.cfg.Copybook, cat.Tables()); err != nil {
			return nil, fmt.Errorf("save catalog: %w", err)
		}
	}

	result := &CompileResult{Artifacts: set.Files}
	for _, t := range cat.Tables() {
		sum := storage.TableSummary{
			Name:         t.Name,
			Mode:         t.Mode,
			Fields:       len(t.Fields),
			RecordLength: t.MaxEnd(),
		}
		result.Tables = append(result.Tables, sum)
		s.emitter.Emit(ctx, EventCompileTable, sum)
	}
	s.emitter.Emit(ctx, EventCompileDone, result)
	return result, nil
}

// ── Convert ────────────────────────────────────────────────

// ConvertResult is a finished run with its per-file outcomes.
type ConvertResult struct {
	Run   *domain.RunLog      `json:"run"`
	Files []domain.FileResult `json:"files"`
}

// Convert decodes every mapped flat file and records the run.
func (s *ConvertService) Convert(ctx context.Context, trigger string) (*ConvertResult, error) {
	key, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer s.runningJobs.Unlock(key)
	return s.convertRecorded(ctx, trigger)
}

func (s *ConvertService) convertRecorded(ctx context.Context, trigger string) (*ConvertResult, error) {
	run := &domain.RunLog{Trigger: trigger, StartedAt: time.Now()}
	if s.runs != nil {
		if err := s.runs.CreateRun(run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}

	result, runErr := s.convert(ctx)

	run.FinishedAt = time.Now()
	var files []domain.FileResult
	if result != nil {
		files = result.Files
		run.Files = len(result.Files)
		run.Skipped = result.Skipped
		run.Rows = result.Rows
		run.Status = result.Status()
	}
	if runErr != nil {
		run.Status = domain.RunError
		run.Error = runErr.Error()
	}
	if s.runs != nil {
		if err := s.runs.FinishRun(run, files); err != nil {
			log.Printf("convert: failed to record run %s: %v", run.ID, err)
		}
	}

	s.emitter.Emit(ctx, EventConvertDone, run)
	return &ConvertResult{Run: run, Files: files}, runErr
}

func (s *ConvertService) convert(ctx context.Context) (*etl.RunResult, error) {
	engine, err := s.engine(ctx)
	if err != nil {
		return nil, err
	}

	if s.cfg.Load != nil {
		loader, err := s.openLoader(ctx)
		if err != nil {
			return nil, err
		}
		defer loader.Close()
		engine.Dest = loader
		engine.LoadMode = s.cfg.Load.Mode
	}

	engine.OnFile = func(fr domain.FileResult) {
		s.emitter.Emit(ctx, EventConvertFile, fr)
	}
	return engine.Run(ctx)
}

// openLoader connects to the configured load target.
func (s *ConvertService) openLoader(ctx context.Context) (dbclient.Loader, error) {
	target := *s.cfg.Load
	if target.PasswordSecret != "" {
		pw, err := s.secrets.Resolve(target.PasswordSecret)
		if err != nil {
			return nil, fmt.Errorf("load target password: %w", err)
		}
		target.Password = pw
	}
	loader, err := dbclient.NewLoader(target, s.cfg.GroupDelimiter)
	if err != nil {
		return nil, err
	}
	if err := loader.TestConnection(ctx); err != nil {
		loader.Close()
		return nil, fmt.Errorf("load target: %w", err)
	}
	return loader, nil
}

// InspectTarget lists the tables of the configured load target.
func (s *ConvertService) InspectTarget(ctx context.Context) (*dbclient.SchemaInfo, error) {
	if s.cfg.Load == nil {
		return nil, fmt.Errorf("no load target configured")
	}
	loader, err := s.openLoader(ctx)
	if err != nil {
		return nil, err
	}
	defer loader.Close()
	return loader.Introspect(ctx)
}

// engine builds a conversion engine over the current catalog and mapping.
func (s *ConvertService) engine(ctx context.Context) (*etl.Engine, error) {
	cat, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	m, err := mapping.Load(ctx, s.cfg.Mapping.Type, s.cfg.Mapping.SourceConfig())
	if err != nil {
		return nil, err
	}
	return &etl.Engine{
		Catalog:    cat,
		Mapping:    m,
		DataDir:    s.cfg.DataDir,
		OutputDir:  s.cfg.OutputDir,
		LayoutDir:  s.cfg.LayoutDir,
		FieldDelim: s.cfg.FieldDelimiter,
		GroupDelim: s.cfg.GroupDelimiter,
	}, nil
}

// Run compiles the copybook, then converts, holding the guard across both steps.
func (s *ConvertService) Run(ctx context.Context, trigger string) (*ConvertResult, error) {
	key, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer s.runningJobs.Unlock(key)

	if _, err := s.compile(ctx); err != nil {
		return nil, err
	}
	return s.convertRecorded(ctx, trigger)
}

func (s *ConvertService) lock() (string, error) {
	key := s.guardKey()
	if !s.runningJobs.TryLock(key) {
		return "", fmt.Errorf("%w: %s", ErrAlreadyRunning, key)
	}
	return key, nil
}

func (s *ConvertService) guardKey() string {
	if abs, err := filepath.Abs(s.cfg.OutputDir); err == nil {
		return abs
	}
	return s.cfg.OutputDir
}

// ── Catalog queries ────────────────────────────────────────

// Catalog loads the catalog from the schema artifacts, falling back to the
// catalog persisted by the last compilation.
func (s *ConvertService) Catalog() (*domain.Catalog, error) {
	cat, err := schemafile.LoadDir(s.cfg.SchemaDir)
	if err == nil {
		return cat, nil
	}
	if s.catalogs != nil {
		if stored, serr := s.catalogs.LoadCatalog(s.cfg.Copybook); serr == nil {
			return stored, nil
		}
	}
	return nil, fmt.Errorf("load catalog: %w", err)
}

// TableDescription is one table's schema together with its output layout.
type TableDescription struct {
	Table  *domain.TableSchema `json:"table"`
	Header []string            `json:"header"`
	Layout []decode.LayoutRow  `json:"layout"`
}

// DescribeTable returns the schema and output layout of a catalog table.
func (s *ConvertService) DescribeTable(name string) (*TableDescription, error) {
	dec, err := s.decoder(name)
	if err != nil {
		return nil, err
	}
	return &TableDescription{Table: dec.Table(), Header: dec.Header(), Layout: dec.Layout()}, nil
}

// DecodeLines decodes literal record lines against a catalog table.
func (s *ConvertService) DecodeLines(table string, lines []string) (*etl.Preview, error) {
	cat, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	return s.DecodeWith(cat, table, lines)
}

// DecodeWith decodes literal record lines against a table of the given catalog.
func (s *ConvertService) DecodeWith(cat *domain.Catalog, table string, lines []string) (*etl.Preview, error) {
	dec, err := s.decoderFor(cat, table)
	if err != nil {
		return nil, err
	}
	p := &etl.Preview{Table: dec.Table().Name, Header: dec.Header()}
	for _, line := range lines {
		p.Rows = append(p.Rows, dec.DecodeLine(line))
	}
	return p, nil
}

func (s *ConvertService) decoder(name string) (*decode.Decoder, error) {
	cat, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	return s.decoderFor(cat, name)
}

func (s *ConvertService) decoderFor(cat *domain.Catalog, name string) (*decode.Decoder, error) {
	e := &etl.Engine{Catalog: cat, FieldDelim: s.cfg.FieldDelimiter, GroupDelim: s.cfg.GroupDelimiter}
	return e.Decoder(name)
}

// Preview decodes the first n records of the file mapped to table.
func (s *ConvertService) Preview(ctx context.Context, table string, n int) (*etl.Preview, error) {
	engine, err := s.engine(ctx)
	if err != nil {
		return nil, err
	}
	return engine.Preview(ctx, table, n)
}

// ListRuns returns the most recent run logs.
func (s *ConvertService) ListRuns(limit int) ([]domain.RunLog, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(limit)
}

// RunFiles returns the per-file outcomes of a run.
func (s *ConvertService) RunFiles(runID string) ([]domain.FileResult, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListFileResults(runID)
}

// ── Watchers (cron + fsnotify) ────────────────────────────

// StartWatchers tears down the current watcher/cron and rebuilds them from the config.
// Changes to the copybook trigger a full Run; changes in the data directory trigger Convert.
func (s *ConvertService) StartWatchers(ctx context.Context) {
	s.stopWatchers()

	if s.cfg.Schedule != "" {
		c := cron.New()
		_, err := c.AddFunc(s.cfg.Schedule, func() {
			log.Printf("convert cron: running %s", s.cfg.OutputDir)
			if _, err := s.Run(ctx, TriggerSchedule); err != nil {
				log.Printf("convert cron: run failed: %v", err)
			}
		})
		if err != nil {
			log.Printf("convert cron: invalid expression %q: %v", s.cfg.Schedule, err)
		} else {
			c.Start()
			s.cronSched = c
			log.Printf("convert cron: scheduled %q", s.cfg.Schedule)
		}
	}

	if !s.cfg.Watch {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("convert watcher: failed to create watcher: %v", err)
		return
	}
	s.watcher = watcher

	copybookPath, _ := filepath.Abs(s.cfg.Copybook)
	dataDir, _ := filepath.Abs(s.cfg.DataDir)
	for _, dir := range lo.Uniq([]string{dataDir, filepath.Dir(copybookPath)}) {
		if err := watcher.Add(dir); err != nil {
			log.Printf("convert watcher: failed to watch dir %q: %v", dir, err)
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		timers := make(map[string]*time.Timer)
		for {
			select {
			case <-watchCtx.Done():
				for _, t := range timers {
					t.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				action := watchAction(absPath, copybookPath, dataDir)
				if action == "" {
					continue
				}
				if t, exists := timers[action]; exists {
					t.Stop()
				}
				changed := absPath
				timers[action] = time.AfterFunc(500*time.Millisecond, func() {
					log.Printf("convert watcher: file changed %q, running %s", changed, action)
					if err := s.runAction(ctx, action); err != nil {
						log.Printf("convert watcher: %s failed: %v", action, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("convert watcher: error: %v", err)
			}
		}
	}()

	log.Printf("convert watcher: watching %s and %s", dataDir, copybookPath)
}

// watchAction maps a changed path to "run" (copybook), "convert" (data file) or "".
func watchAction(path, copybookPath, dataDir string) string {
	switch {
	case path == copybookPath:
		return "run"
	case filepath.Dir(path) == dataDir:
		return "convert"
	default:
		return ""
	}
}

func (s *ConvertService) runAction(ctx context.Context, action string) error {
	var err error
	if action == "run" {
		_, err = s.Run(ctx, TriggerWatch)
	} else {
		_, err = s.Convert(ctx, TriggerWatch)
	}
	if errors.Is(err, ErrAlreadyRunning) {
		log.Printf("convert watcher: %v", err)
		return nil
	}
	return err
}

// WaitRunning blocks until all running conversions finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ConvertService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ConvertService) Stop() {
	s.stopWatchers()
}

func (s *ConvertService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
