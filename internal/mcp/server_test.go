package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
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
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"copybook.txt":       testCopybook,
		"mapping.csv":        "table_name,flat_file_name\nTEST_REC,test_file.dat\n",
		"data/test_file.dat": "ABCDEFGHI\nJKLMNOPQR\n",
	} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	cfgPath := filepath.Join(dir, config.DefaultFile)
	require.NoError(t, config.WriteFile(config.Sample(), cfgPath))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	db, err := storage.New(cfg.StateDB)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	em := &service.MockEmitter{}
	svc := service.NewConvertService(cfg, storage.NewCatalogStore(db), storage.NewRunStore(db), em)
	return New(Deps{Emitter: em, Convert: svc})
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) string {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestTools_CompileAndDescribe(t *testing.T) {
	s := newTestServer(t)

	var compiled service.CompileResult
	require.NoError(t, json.Unmarshal([]byte(callTool(t, s.handleCompileCopybook, nil)), &compiled))
	require.Len(t, compiled.Tables, 1)
	assert.Equal(t, 9, compiled.Tables[0].RecordLength)

	var tables []storage.TableSummary
	require.NoError(t, json.Unmarshal([]byte(callTool(t, s.handleListTables, nil)), &tables))
	require.Len(t, tables, 1)
	assert.Equal(t, "TEST_REC", tables[0].Name)

	var desc service.TableDescription
	require.NoError(t, json.Unmarshal([]byte(callTool(t, s.handleDescribeTable, map[string]any{"table": "test-rec"})), &desc))
	assert.Equal(t, []string{"FLDA", "SUBA_PE", "SUBB_PE"}, desc.Header)
	assert.Len(t, desc.Table.Fields, 5)
}

func TestTools_DecodeRecord(t *testing.T) {
	s := newTestServer(t)
	_, err := s.convert.Compile(context.Background())
	require.NoError(t, err)

	var p struct {
		Rows [][]string `json:"rows"`
	}
	out := callTool(t, s.handleDecodeRecord, map[string]any{"table": "TEST_REC", "records": "ABCDEFGHI\nXY"})
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, [][]string{{"ABC", "DE§FG", "H§I"}, {"XY", "§", "§"}}, p.Rows)

	out = callTool(t, s.handleDecodeRecord, map[string]any{
		"table":    "SNIP",
		"records":  "1234",
		"copybook": "01 SNIP\n02 A(A1)\n02 B(A3)\n",
	})
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, [][]string{{"1", "234"}}, p.Rows)
}

func TestTools_RunConversionAndListRuns(t *testing.T) {
	s := newTestServer(t)

	var res service.ConvertResult
	require.NoError(t, json.Unmarshal([]byte(callTool(t, s.handleRunConversion, map[string]any{"compile": true})), &res))
	assert.Equal(t, domain.RunSuccess, res.Run.Status)
	assert.Equal(t, 2, res.Run.Rows)

	var runs []domain.RunLog
	require.NoError(t, json.Unmarshal([]byte(callTool(t, s.handleListRuns, map[string]any{"limit": 5})), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, service.TriggerMCP, runs[0].Trigger)

	var files []domain.FileResult
	require.NoError(t, json.Unmarshal([]byte(callTool(t, s.handleListRuns, map[string]any{"runId": runs[0].ID})), &files))
	require.Len(t, files, 1)
	assert.Equal(t, 2, files[0].Rows)

	var p struct {
		Rows [][]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(callTool(t, s.handlePreviewFile, map[string]any{"table": "TEST_REC", "rows": 1})), &p))
	assert.Len(t, p.Rows, 1)
}

func TestTools_MissingArguments(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleDescribeTable(context.Background(), mcp.CallToolRequest{})
	assert.Error(t, err)
	_, err = s.handleDecodeRecord(context.Background(), mcp.CallToolRequest{})
	assert.Error(t, err)
	_, err = s.handlePreviewFile(context.Background(), mcp.CallToolRequest{})
	assert.Error(t, err)
}

func TestResources(t *testing.T) {
	s := newTestServer(t)
	_, err := s.convert.Compile(context.Background())
	require.NoError(t, err)

	req := mcp.ReadResourceRequest{}
	req.Params.URI = tablesURI
	contents, err := s.handleTablesResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, "TEST_REC")

	req.Params.URI = "copyflat://table/TEST_REC"
	contents, err = s.handleTableResource(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, "SUBA_PE")

	req.Params.URI = "file:///tmp/other"
	_, err = s.handleTableResource(context.Background(), req)
	assert.Error(t, err)
}

func TestTableNameFromURI(t *testing.T) {
	assert.Equal(t, "TEST_REC", tableNameFromURI("copyflat://table/TEST_REC"))
	assert.Equal(t, "A", tableNameFromURI("copyflat://table/A/"))
	assert.Equal(t, "", tableNameFromURI("copyflat://tables"))
}
