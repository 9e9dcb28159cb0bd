package service_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyflat/internal/config"
	"copyflat/internal/domain"
	"copyflat/internal/service"
	"copyflat/internal/storage"
)

const testCopybook = `01 TEST-REC
  02 FLDA(A3)
  02 GRP-PE(2)
    03 SUBA(A2)
    03 SUBB(N1)
TOTAL RECORD LENGTH 9
01 PLAIN-REC
  02 CODE(A2)
  02 NAME(A4)
`

const testMapping = "Table_Name,Flat_File_Name\nTEST-REC,test_file.dat\nNOPE,x.dat\n"

type fixture struct {
	dir     string
	cfg     *config.Config
	svc     *service.ConvertService
	emitter *service.MockEmitter
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newFixture(t *testing.T, edit func(*config.Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "copybook.txt"), testCopybook)
	writeFile(t, filepath.Join(dir, "mapping.csv"), testMapping)
	writeFile(t, filepath.Join(dir, "data", "test_file.dat"), "ABCDEFGHI\nXYZ12\n")

	sample := config.Sample()
	if edit != nil {
		edit(sample)
	}
	cfgPath := filepath.Join(dir, config.DefaultFile)
	require.NoError(t, config.WriteFile(sample, cfgPath))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	db, err := storage.New(cfg.StateDB)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	em := &service.MockEmitter{}
	svc := service.NewConvertService(cfg, storage.NewCatalogStore(db), storage.NewRunStore(db), em)
	t.Cleanup(svc.Stop)
	return &fixture{dir: dir, cfg: cfg, svc: svc, emitter: em}
}

func TestConvertService_Compile(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Compile(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Tables, 2)
	assert.Equal(t, "TEST_REC", res.Tables[0].Name)
	assert.Equal(t, domain.ExpandedTable, res.Tables[0].Mode)
	assert.Equal(t, 9, res.Tables[0].RecordLength)
	assert.Equal(t, "PLAIN_REC", res.Tables[1].Name)
	assert.Len(t, res.Artifacts, 4)

	for _, p := range res.Artifacts {
		assert.FileExists(t, p)
	}
	assert.Len(t, f.emitter.Named(service.EventCompileTable), 2)
	assert.Len(t, f.emitter.Named(service.EventCompileDone), 1)
}

func TestConvertService_Run(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Run(ctx, service.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, res.Run.Status)
	assert.Equal(t, 2, res.Run.Files)
	assert.Equal(t, 1, res.Run.Skipped)
	assert.Equal(t, 2, res.Run.Rows)

	require.Len(t, res.Files, 2)
	assert.Equal(t, domain.SkipUnknownTable, res.Files[1].Skip)

	out, err := os.ReadFile(filepath.Join(f.cfg.OutputDir, "TESTFILE.TXT"))
	require.NoError(t, err)
	assert.Equal(t, "FLDA¦SUBA_PE¦SUBB_PE\nABC¦DE§FG¦H§I\nXYZ¦12§¦§\n", string(out))
	assert.FileExists(t, filepath.Join(f.cfg.LayoutDir, "TESTFILE.TXT"))

	assert.Len(t, f.emitter.Named(service.EventConvertFile), 2)
	assert.Len(t, f.emitter.Named(service.EventConvertDone), 1)

	runs, err := f.svc.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, service.TriggerCLI, runs[0].Trigger)
	assert.Equal(t, domain.RunSuccess, runs[0].Status)

	files, err := f.svc.RunFiles(runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestConvertService_ConvertWithoutSchema(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Convert(context.Background(), service.TriggerCLI)
	require.Error(t, err)
	assert.Equal(t, domain.RunError, res.Run.Status)
	assert.NotEmpty(t, res.Run.Error)

	runs, err := f.svc.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunError, runs[0].Status)
}

func TestConvertService_LoadsIntoSQLite(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Load = &domain.LoadTarget{Driver: domain.DatabaseDriverSQLite, Host: "target.db"}
	})

	res, err := f.svc.Run(context.Background(), service.TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files[0].Loaded)

	db, err := sql.Open("sqlite", filepath.Join(f.dir, "target.db"))
	require.NoError(t, err)
	defer db.Close()

	var grp string
	require.NoError(t, db.QueryRow(`SELECT "SUBA_PE" FROM "TEST_REC" WHERE "FLDA" = 'ABC'`).Scan(&grp))
	assert.Equal(t, "DE§FG", grp)

	info, err := f.svc.InspectTarget(context.Background())
	require.NoError(t, err)
	require.Len(t, info.Tables, 1)
	assert.Equal(t, "TEST_REC", info.Tables[0].Name)
}

func TestConvertService_PasswordSecretMustResolve(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Load = &domain.LoadTarget{Driver: domain.DatabaseDriverPostgres, Host: "db", PasswordSecret: "env:COPYFLAT_TEST_UNSET_PASSWORD"}
	})
	_, err := f.svc.Compile(context.Background())
	require.NoError(t, err)

	res, err := f.svc.Convert(context.Background(), service.TriggerCLI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load target password")
	assert.Equal(t, domain.RunError, res.Run.Status)

	_, err = f.svc.InspectTarget(context.Background())
	assert.Error(t, err)
}

func TestConvertService_CatalogFallsBackToStore(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Compile(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(f.cfg.SchemaDir))

	cat, err := f.svc.Catalog()
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
}

func TestConvertService_DescribeAndDecode(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Compile(ctx)
	require.NoError(t, err)

	desc, err := f.svc.DescribeTable("test-rec")
	require.NoError(t, err)
	assert.Equal(t, []string{"FLDA", "SUBA_PE", "SUBB_PE"}, desc.Header)
	require.Len(t, desc.Layout, 3)
	assert.True(t, desc.Layout[1].IsGroup())

	p, err := f.svc.DecodeLines("PLAIN_REC", []string{"ABCDEF", "X"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"AB", "CDEF"}, {"X", ""}}, p.Rows)

	_, err = f.svc.DescribeTable("MISSING")
	assert.Error(t, err)

	prev, err := f.svc.Preview(ctx, "TEST_REC", 1)
	require.NoError(t, err)
	assert.Equal(t, "test_file.dat", prev.FlatFile)
	assert.Equal(t, [][]string{{"ABC", "DE§FG", "H§I"}}, prev.Rows)
}

func TestConvertService_WatcherConvertsOnDataChange(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Watch = true })
	ctx := context.Background()
	_, err := f.svc.Compile(ctx)
	require.NoError(t, err)

	f.svc.StartWatchers(ctx)
	writeFile(t, filepath.Join(f.cfg.DataDir, "test_file.dat"), "QQQ\n")

	require.Eventually(t, func() bool {
		return len(f.emitter.Named(service.EventConvertDone)) > 0
	}, 5*time.Second, 50*time.Millisecond)

	f.svc.Stop()
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	f.svc.WaitRunning(waitCtx)

	runs, err := f.svc.ListRuns(10)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, service.TriggerWatch, runs[0].Trigger)
}

// gateEmitter holds the first convert:file event until released.
type gateEmitter struct {
	service.MockEmitter
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (g *gateEmitter) Emit(ctx context.Context, event string, data any) {
	g.MockEmitter.Emit(ctx, event, data)
	if event == service.EventConvertFile {
		g.once.Do(func() {
			close(g.reached)
			<-g.release
		})
	}
}

func TestConvertService_CompileWaitsForRunningConversion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Compile(ctx)
	require.NoError(t, err)

	gate := &gateEmitter{reached: make(chan struct{}), release: make(chan struct{})}
	svc := service.NewConvertService(f.cfg, nil, nil, gate)

	errc := make(chan error, 1)
	go func() {
		_, err := svc.Convert(ctx, service.TriggerCLI)
		errc <- err
	}()
	<-gate.reached

	_, err = svc.Compile(ctx)
	assert.ErrorIs(t, err, service.ErrAlreadyRunning)
	_, err = svc.Run(ctx, service.TriggerSchedule)
	assert.ErrorIs(t, err, service.ErrAlreadyRunning)
	_, err = svc.Convert(ctx, service.TriggerWatch)
	assert.ErrorIs(t, err, service.ErrAlreadyRunning)

	close(gate.release)
	require.NoError(t, <-errc)

	_, err = svc.Compile(ctx)
	assert.NoError(t, err)
}

func TestConvertService_StopIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.Stop()
	f.svc.Stop()
}
