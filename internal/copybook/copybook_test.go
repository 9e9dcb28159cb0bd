package copybook

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyflat/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Type mapping
// ─────────────────────────────────────────────────────────────

func TestMapType(t *testing.T) {
	tests := []struct {
		token string
		label string
		width int
		known bool
	}{
		{"A10", "VARCHAR(10)", 10, true},
		{"N5", "VARCHAR(5)", 5, true},
		{"N7.2", "VARCHAR(9)", 9, true},
		{" A3 ", "VARCHAR(3)", 3, true},
		{"A5/3", "VARCHAR(5)", 5, true}, // prefix match only
		{"", "VARCHAR(255)", 1, false},
		{"/* filler */", "VARCHAR(255)", 1, false},
		{"X9", "VARCHAR(255)", 1, false},
		{"a5", "VARCHAR(255)", 1, false},
		{"A", "VARCHAR(255)", 1, false},
		{"3", "VARCHAR(255)", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got := MapType(tt.token)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.width, got.Width)
			assert.Equal(t, tt.known, got.Recognized)
		})
	}
}

func TestMapType_Deterministic(t *testing.T) {
	for _, tok := range []string{"N7.2", "A1", "", "junk"} {
		first := MapType(tok)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, MapType(tok))
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Table splitting
// ─────────────────────────────────────────────────────────────

func TestSplitTables(t *testing.T) {
	text := `PROGRAM HEADER
01 MEMBER-REC
  02 MEM-NO(A8)
  02 MEM_NAME(A20)
TOTAL RECORD LENGTH 28
  02 STRAY(A1)
01 CLAIM-REC
  02 CLAIM-NO(A6)
  02 LINE-PE(2)
    03 AMT(N5.2)
UNIQUE KEY CLAIM-NO
01 EMPTY-REC
01 A_B-C
  02 X(A5/3)
----------------------`

	blocks := SplitTables(SplitLines(text))
	require.Len(t, blocks, 3)

	assert.Equal(t, "MEMBER_REC", blocks[0].Name)
	assert.Equal(t, domain.DirectTable, blocks[0].Mode)
	assert.Len(t, blocks[0].Lines, 2, "terminator closes the table; stray lines are dropped")

	assert.Equal(t, "CLAIM_REC", blocks[1].Name)
	assert.Equal(t, domain.ExpandedTable, blocks[1].Mode)
	assert.Len(t, blocks[1].Lines, 3)

	assert.Equal(t, "A_B_C", blocks[2].Name)
	assert.Equal(t, domain.ExpandedTable, blocks[2].Mode)
}

func TestSplitTables_TerminatorBeforeLinesKeepsTableOpen(t *testing.T) {
	text := "01 T1\n---\n  02 A(A1)\n"
	blocks := SplitTables(SplitLines(text))
	require.Len(t, blocks, 1)
	assert.Equal(t, "T1", blocks[0].Name)
	assert.Len(t, blocks[0].Lines, 1)
}

func TestClassifyBlock(t *testing.T) {
	assert.Equal(t, domain.DirectTable, ClassifyBlock([]string{"02 A(A1)", "02 ITEMPE(3)"}))
	assert.Equal(t, domain.ExpandedTable, ClassifyBlock([]string{"02 A(A1)", "02 GRP-PE(3)"}))
	assert.Equal(t, domain.ExpandedTable, ClassifyBlock([]string{"02 A(A1/2)"}))
}

// ─────────────────────────────────────────────────────────────
// Field expansion
// ─────────────────────────────────────────────────────────────

// span renders fields as NAME[start-end] for compact comparisons.
func span(fields []domain.FieldSpec) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = fmt.Sprintf("%s[%d-%d]", f.Name, f.Start, f.End)
	}
	return out
}

func compileOne(t *testing.T, text string) CompiledTable {
	t.Helper()
	tables := Compile(text)
	require.Len(t, tables, 1)
	require.NoError(t, tables[0].Validate())
	return tables[0]
}

func TestExpand_OccursChildMajor(t *testing.T) {
	tbl := compileOne(t, `01 TEST-REC
  02 FLDA(A3)
  02 GRP-PE(2)
    03 SUBA(A2)
    03 SUBB(N1)`)

	assert.Equal(t, "TEST_REC", tbl.Name)
	assert.Equal(t, []string{"FLDA[1-3]", "SUBA1[4-5]", "SUBA2[6-7]", "SUBB1[8-8]", "SUBB2[9-9]"}, span(tbl.Fields))
	assert.Equal(t, 10, tbl.NextPos)
}

func TestExpand_OccursRunEndsAtNextLevel02(t *testing.T) {
	tbl := compileOne(t, `01 T
  02 GRP-PE(3)
    03 CODE(A1)
    * comment inside the run
  02 TAIL(A2)`)

	assert.Equal(t, []string{"CODE1[1-1]", "CODE2[2-2]", "CODE3[3-3]", "TAIL[4-5]"}, span(tbl.Fields))
}

func TestExpand_NestedRepeatInsideOccurs(t *testing.T) {
	tbl := compileOne(t, `01 T
  02 LINE-PE(2)
    03 AMT(N5.2/3)
    03 FLAG(A1)`)

	names := []string{}
	for _, f := range tbl.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"AMT1", "AMT2", "AMT3", "AMT4", "AMT5", "AMT6", "FLAG1", "FLAG2"}, names)
	assert.Equal(t, 7, tbl.Fields[0].Width)
	assert.Equal(t, 44, tbl.Fields[7].End)
}

func TestExpand_FlatRepeat(t *testing.T) {
	tbl := compileOne(t, "01 T\n  02 X(A5/3)\n")
	assert.Equal(t, []string{"X1[1-5]", "X2[6-10]", "X3[11-15]"}, span(tbl.Fields))
	for _, f := range tbl.Fields {
		assert.Equal(t, 5, f.Width)
		assert.Equal(t, "VARCHAR(5)", f.TypeLabel)
	}
}

func TestExpand_FlatRepeatCountEdgeCases(t *testing.T) {
	tbl := compileOne(t, "01 T\n  02 A(A2/)\n  02 B(A1/x)\n  02 C(A1/2)\n")
	assert.Equal(t, []string{"A1[1-2]", "B1[3-3]", "C1[4-4]", "C2[5-5]"}, span(tbl.Fields))
}

func TestExpand_VoidGroupElision(t *testing.T) {
	tbl := compileOne(t, `01 V-REC
  02 NAME(A5)
  02 FILLER()
    03 X(A3)
    03 Y(A3)
  02 NOTE(/* unused */)
    03 Z(A9)
  02 BROKEN
    03 W(A4)
  02 AGE(N3)`)

	assert.Equal(t, []string{"NAME[1-5]", "AGE[6-8]"}, span(tbl.Fields))
	assert.Equal(t, 9, tbl.NextPos)
}

func TestExpand_VoidGroupDirectMode(t *testing.T) {
	tbl := compileOne(t, `01 D
  02 FILLER()
    03 X(A3)
  02 NAME(A5)`)

	assert.Equal(t, domain.DirectTable, tbl.Mode)
	assert.Equal(t, []string{"NAME[1-5]"}, span(tbl.Fields))
	assert.Equal(t, 6, tbl.NextPos)
}

func TestExpand_MarkerNameExcludedFromFlatRepeat(t *testing.T) {
	// A PE-named field with a slash type is neither a flat repeat nor an
	// occurs group: it stays a single field typed by its base token.
	tbl := compileOne(t, "01 T\n  02 REC-TYPE(A2/3)\n")
	require.Len(t, tbl.Fields, 1)
	assert.Equal(t, "RECTYPE", tbl.Fields[0].Name)
	assert.Equal(t, 2, tbl.Fields[0].Width)
}

func TestExpand_DirectModeDoesNotExpand(t *testing.T) {
	tbl := compileOne(t, "01 T\n  02 ITEMPE(3)\n    03 A(A2)\n")
	assert.Equal(t, domain.DirectTable, tbl.Mode)
	assert.Equal(t, []string{"ITEMPE[1-1]", "A[2-3]"}, span(tbl.Fields))
	assert.Equal(t, DefaultTypeLabel, tbl.Fields[0].TypeLabel)
}

func TestExpand_DefaultTypeKeepsWidthOne(t *testing.T) {
	tbl := compileOne(t, "01 T\n  02 CODE(X9)\n  03 SUB()\n  02 NEXT(A2)\n")
	assert.Equal(t, []string{"CODE[1-1]", "SUB[2-2]", "NEXT[3-4]"}, span(tbl.Fields))
	assert.Equal(t, "VARCHAR(255)", tbl.Fields[0].TypeLabel)
}

func TestExpand_NameCleaning(t *testing.T) {
	tbl := compileOne(t, "01 T\n  02 MEM_NO-X(A1)\n  02 #REF(A1)\n")
	assert.Equal(t, "MEMNOX", tbl.Fields[0].Name)
	assert.Equal(t, "#REF", tbl.Fields[1].Name)
}

func TestExpandFields_UnknownModePanics(t *testing.T) {
	assert.Panics(t, func() { ExpandFields(TableBlock{Mode: "bogus"}) })
}

func TestCompile_ContiguityAndIdempotence(t *testing.T) {
	text := `01 A-REC
  02 K(A4)
  02 P-PE(3)
    03 Q(N2.1/2)
    03 R(A1)
  02 S(N4/2)
TOTAL RECORD LENGTH
01 B-REC
  02 U(A1)
  02 V()
  02 W(N6)`

	first := Compile(text)
	second := Compile(text)
	assert.Equal(t, first, second)

	for _, tbl := range first {
		require.NotEmpty(t, tbl.Fields)
		assert.Equal(t, 1, tbl.Fields[0].Start)
		for i := 1; i < len(tbl.Fields); i++ {
			assert.Equal(t, tbl.Fields[i-1].End+1, tbl.Fields[i].Start, "%s field %d", tbl.Name, i)
		}
		assert.Equal(t, tbl.MaxEnd()+1, tbl.NextPos)
	}

	c := CompileCatalog(text)
	assert.Equal(t, 2, c.Len())
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitLines("a\r\nb\rc\n"))
	assert.Nil(t, SplitLines(""))
}
