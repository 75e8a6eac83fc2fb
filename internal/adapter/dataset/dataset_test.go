package dataset_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/alanyang/nlq-bench/internal/adapter/dataset"
	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CSVNamedColumns(t *testing.T) {
	path := writeFile(t, "nl_to_sql.csv",
		"natural_language,expected_sql\n"+
			"show me top merchants,\"SELECT m, SUM(txnamount) FROM t GROUP BY m\"\n"+
			",\n"+
			"count P2M txns,SELECT COUNT(*) FROM t\n")

	got, err := dataset.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []domainrun.Case{
		{Input: "show me top merchants", Expected: "SELECT m, SUM(txnamount) FROM t GROUP BY m"},
		{Input: "count P2M txns", Expected: "SELECT COUNT(*) FROM t"},
	}, got)
}

func TestLoad_CSVColumnOrderIndependent(t *testing.T) {
	path := writeFile(t, "d.csv", "\ufeffexpected_output,input\nClear,q1\n")

	got, err := dataset.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []domainrun.Case{{Input: "q1", Expected: "Clear"}}, got)
}

func TestLoad_SingleColumnQueryList(t *testing.T) {
	path := writeFile(t, "ambiguity_intent.csv", "query\nshow transactions\nP2M volume yesterday\n")

	got, err := dataset.Load(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Empty(t, got[0].Expected)
}

func TestLoad_UnknownHeaderIsPositional(t *testing.T) {
	path := writeFile(t, "d.csv", "q,a\nx,y\n")

	got, err := dataset.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []domainrun.Case{{Input: "x", Expected: "y"}}, got)
}

func TestLoad_Empty(t *testing.T) {
	path := writeFile(t, "d.csv", "")
	_, err := dataset.Load(path)
	assert.ErrorIs(t, err, dataset.ErrEmpty)
}

func TestLoad_Unsupported(t *testing.T) {
	_, err := dataset.Load("queries.parquet")
	assert.ErrorIs(t, err, dataset.ErrUnsupportedFormat)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := dataset.Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestLoad_Excel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.xlsx")
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"input", "expected_output"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"show me top merchants", "SELECT 1"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"which bank", ""}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	got, err := dataset.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []domainrun.Case{
		{Input: "show me top merchants", Expected: "SELECT 1"},
		{Input: "which bank"},
	}, got)
}

func TestFromRows_ShortRows(t *testing.T) {
	got, err := dataset.FromRows([][]string{{"input", "expected_output"}, {"only input"}})
	require.NoError(t, err)
	assert.Equal(t, []domainrun.Case{{Input: "only input"}}, got)
}
