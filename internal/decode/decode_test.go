package decode

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyflat/internal/copybook"
	"copyflat/internal/domain"
)

const testRec = `01 TEST-REC
  02 FLDA(A3)
  02 GRP-PE(2)
    03 SUBA(A2)
    03 SUBB(N1)
`

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	cat := copybook.CompileCatalog(testRec)
	tbl, ok := cat.Lookup("TEST_REC")
	require.True(t, ok)
	d, err := NewDecoder(tbl, DefaultFieldDelimiter, DefaultGroupDelimiter)
	require.NoError(t, err)
	return d
}

func TestBaseName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"SUBA1", "SUBA"},
		{"SUBA12", "SUBA"},
		{"FLDA", "FLDA"},
		{"A1B2", "A1B"},
		{"123", "123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseName(tt.in), tt.in)
	}
}

func TestRegroup(t *testing.T) {
	fields := []domain.FieldSpec{
		{Name: "KEY", Width: 2, Start: 1, End: 2},
		{Name: "AMT1", Width: 3, Start: 3, End: 5},
		{Name: "QTY1", Width: 1, Start: 6, End: 6},
		{Name: "AMT2", Width: 3, Start: 7, End: 9},
		{Name: "QTY2", Width: 1, Start: 10, End: 10},
		{Name: "TAIL9", Width: 1, Start: 11, End: 11},
	}
	cols := Regroup(fields)
	require.Len(t, cols, 4)
	assert.Equal(t, "KEY", cols[0].DisplayName())
	assert.Equal(t, "AMT_PE", cols[1].DisplayName())
	assert.Equal(t, "QTY_PE", cols[2].DisplayName())
	// a lone suffixed field is a scalar under its base name
	assert.Equal(t, "TAIL", cols[3].DisplayName())
	assert.False(t, cols[3].IsGroup())
}

func TestDecoder_Header(t *testing.T) {
	d := newTestDecoder(t)
	assert.Equal(t, []string{"FLDA", "SUBA_PE", "SUBB_PE"}, d.Header())
}

func TestDecoder_DecodeLine(t *testing.T) {
	d := newTestDecoder(t)
	assert.Equal(t, "ABC¦DE§FG¦H§I", d.FormatRow(d.DecodeLine("ABCDEFGHI")))
}

func TestDecoder_ShortRecordIsPadded(t *testing.T) {
	d := newTestDecoder(t)
	assert.Equal(t, []string{"AB", "§", "§"}, d.DecodeLine("AB"))
	assert.Equal(t, []string{"ABC", "D§", "§"}, d.DecodeLine("ABCD\r"))
}

func TestDecoder_TrimsAndIgnoresTrailingData(t *testing.T) {
	d := newTestDecoder(t)
	assert.Equal(t, []string{"A", "D§F", "H§I"}, d.DecodeLine(" A D F HIXYZ"))
}

func TestDecoder_CountsCharacters(t *testing.T) {
	d := newTestDecoder(t)
	assert.Equal(t, []string{"ÄÖÜ", "DE§FG", "H§I"}, d.DecodeLine("ÄÖÜDEFGHI"))
}

func TestDecoder_DecodeStream(t *testing.T) {
	d := newTestDecoder(t)
	in := "ABCDEFGHI\r\nAB\n\nXYZ12345\n"
	var out bytes.Buffer
	var sunk [][]string
	n, err := d.DecodeStream(context.Background(), strings.NewReader(in), &out, func(cells []string) error {
		sunk = append(sunk, cells)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, sunk, 4)

	want := "FLDA¦SUBA_PE¦SUBB_PE\n" +
		"ABC¦DE§FG¦H§I\n" +
		"AB¦§¦§\n" +
		"¦§¦§\n" +
		"XYZ¦12§34¦5§\n"
	assert.Equal(t, want, out.String())
}

func TestDecoder_DecodeStreamCancelled(t *testing.T) {
	d := newTestDecoder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	_, err := d.DecodeStream(ctx, strings.NewReader("ABCDEFGHI\n"), &out, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecoder_Layout(t *testing.T) {
	d := newTestDecoder(t)
	want := []LayoutRow{
		{Name: "FLDA", TypeLabel: "VARCHAR(3)", Start: 1, End: 3, Width: 3, Members: 1},
		{Name: "SUBA_PE", TypeLabel: "VARCHAR(2)", Start: 4, End: 7, Width: 4, Members: 2},
		{Name: "SUBB_PE", TypeLabel: "VARCHAR(1)", Start: 8, End: 9, Width: 2, Members: 2},
	}
	assert.Equal(t, want, d.Layout())

	var buf bytes.Buffer
	require.NoError(t, d.WriteLayout(&buf))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "FieldName¦DataType¦Start¦End¦Width", lines[0])
	assert.Equal(t, "SUBA_PE¦VARCHAR(2)¦4¦7¦4", lines[2])
}

func TestNewDecoder_Errors(t *testing.T) {
	_, err := NewDecoder(&domain.TableSchema{Name: "EMPTY"}, DefaultFieldDelimiter, DefaultGroupDelimiter)
	assert.ErrorIs(t, err, ErrEmptySchema)

	tbl := &domain.TableSchema{Name: "T", Fields: []domain.FieldSpec{{Name: "A", Width: 1, Start: 1, End: 1}}}
	_, err = NewDecoder(tbl, "|", "|")
	assert.ErrorIs(t, err, ErrDelimiters)
	_, err = NewDecoder(tbl, "", "§")
	assert.ErrorIs(t, err, ErrDelimiters)
}

func TestDecoder_OutOfRangeFieldsDecodeEmpty(t *testing.T) {
	tbl := &domain.TableSchema{Name: "T", Fields: []domain.FieldSpec{
		{Name: "A", Width: -2, Start: 1, End: -2},
		{Name: "B", Width: 3, Start: -1, End: 1},
	}}
	d, err := NewDecoder(tbl, DefaultFieldDelimiter, DefaultGroupDelimiter)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		assert.Equal(t, []string{"", "X"}, d.DecodeLine("XYZ"))
	})
}

func TestOutputName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"member_file.dat", "MEMBERFILE.TXT"},
		{"data/member-file-v2.dat", "MEMBERFILEV2.TXT"},
		{`"quoted_name".txt`, "QUOTEDNAME.TXT"},
		{`C:\in\plain`, "PLAIN.TXT"},
		{"a__b", "AB.TXT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputName(tt.in), tt.in)
	}
}
