// Package dataset loads benchmark cases from CSV and Excel files.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
)

var (
	ErrEmpty             = errors.New("dataset has no header row")
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
)

// Recognised header names, matched case-insensitively.
var (
	inputColumns    = []string{"input", "natural_language", "query"}
	expectedColumns = []string{"expected_output", "expected_sql", "expected"}
)

// Load reads cases from a .csv or .xlsx file. The first row is a header.
// When the header names no known input column, the first column is the
// input and the second, if present, the expected value.
func Load(path string) ([]domainrun.Case, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		rows, err = readCSV(path)
	case ".xlsx", ".xlsm":
		rows, err = readExcel(path)
	default:
		return nil, fmt.Errorf("load %s: %w", path, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cases, err := FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return cases, nil
}

// FromRows converts a header row plus data rows into cases. Rows with an
// empty input are skipped.
func FromRows(rows [][]string) ([]domainrun.Case, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmpty
	}

	header := rows[0]
	in := columnIndex(header, inputColumns)
	exp := columnIndex(header, expectedColumns)
	if in < 0 {
		in = 0
		if exp < 0 && len(header) > 1 {
			exp = 1
		}
	}

	cases := make([]domainrun.Case, 0, len(rows)-1)
	for _, row := range rows[1:] {
		input := strings.TrimSpace(cell(row, in))
		if input == "" {
			continue
		}
		c := domainrun.Case{Input: input}
		if exp >= 0 {
			c.Expected = strings.TrimSpace(cell(row, exp))
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// readExcel returns the rows of the first sheet.
func readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func columnIndex(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
