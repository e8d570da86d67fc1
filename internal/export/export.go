// Package export serializes a directive's grids to a spreadsheet backup.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	appLog "dsigen/internal/log"
	"dsigen/internal/model"
)

// Kind tells the two backup encodings apart.
type Kind string

const (
	KindXLSX Kind = "xlsx"
	KindCSV  Kind = "csv"
)

const (
	sheetS    = "Semana S"
	sheetS1   = "Semana S+1"
	sheetInfo = "Info"
)

// Report is the part of a directive carried into the backup.
type Report struct {
	Number     string
	WeekTag    string
	Phase      string
	Operations []string
	WeekS      []model.TableRow
	WeekS1     []model.TableRow
}

func (r Report) operationsText() string {
	if len(r.Operations) == 0 {
		return "-"
	}
	return strings.Join(r.Operations, "\n")
}

func header() []any {
	out := make([]any, len(model.Columns))
	for i, c := range model.Columns {
		out[i] = c
	}
	return out
}

func cells(r model.TableRow) []any {
	vals := r.Cells()
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("export: sheet %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func gridRows(rows []model.TableRow) [][]any {
	out := [][]any{header()}
	for _, r := range rows {
		out = append(out, cells(r))
	}
	return out
}

// Workbook renders rep as an xlsx file with one sheet per week and an Info
// sheet of Campo/Valor pairs.
func Workbook(rep Report) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			appLog.Warn("workbook close failed", "reason", err.Error())
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheetS); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	for _, name := range []string{sheetS1, sheetInfo} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("export: new sheet %s: %w", name, err)
		}
	}

	if err := writeRows(f, sheetS, gridRows(rep.WeekS)); err != nil {
		return nil, err
	}
	if err := writeRows(f, sheetS1, gridRows(rep.WeekS1)); err != nil {
		return nil, err
	}
	info := [][]any{
		{"Campo", "Valor"},
		{"Número DSI", rep.Number},
		{"SI", rep.WeekTag},
		{"FASE", rep.Phase},
		{"Operações", rep.operationsText()},
	}
	if err := writeRows(f, sheetInfo, info); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeCSV(b *bytes.Buffer, rows []model.TableRow) error {
	w := csv.NewWriter(b)
	if err := w.Write(model.Columns[:]); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.Cells()); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// CSV renders rep as a sectioned plain-text backup.
func CSV(rep Report) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "DSI Nº %s - SI %s - FASE %s\n", rep.Number, rep.WeekTag, rep.Phase)
	fmt.Fprintf(&b, "Operações:\n%s\n\n", rep.operationsText())
	b.WriteString("=== SEMANA S ===\n")
	if err := writeCSV(&b, rep.WeekS); err != nil {
		return nil, fmt.Errorf("export: csv week S: %w", err)
	}
	b.WriteString("\n=== SEMANA S+1 ===\n")
	if err := writeCSV(&b, rep.WeekS1); err != nil {
		return nil, fmt.Errorf("export: csv week S+1: %w", err)
	}
	return b.Bytes(), nil
}

// Backup produces the workbook, falling back to CSV with a warning when
// the workbook cannot be built.
func Backup(rep Report) ([]byte, Kind, []model.Warning, error) {
	data, err := Workbook(rep)
	if err == nil {
		return data, KindXLSX, nil, nil
	}
	appLog.Error("workbook export failed, falling back to csv", err)
	warnings := []model.Warning{{Scope: "export", Message: fmt.Sprintf("spreadsheet unavailable, CSV backup produced instead: %v", err)}}
	data, err = CSV(rep)
	if err != nil {
		return nil, "", warnings, err
	}
	return data, KindCSV, warnings, nil
}

// DetectKind identifies a backup by its leading bytes; xlsx is a zip.
func DetectKind(data []byte) Kind {
	if bytes.HasPrefix(data, []byte("PK")) {
		return KindXLSX
	}
	return KindCSV
}

// Extension is the file suffix for k.
func (k Kind) Extension() string {
	return "." + string(k)
}

// ContentType is the MIME type for k.
func (k Kind) ContentType() string {
	if k == KindXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}
