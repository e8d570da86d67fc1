// Package layout plans the Google Docs requests that draw a directive:
// tables, their text, borders, shading and merges, and the page style.
//
// Every function works on a freshly fetched *docs.Document or table
// element; offsets are only valid until the next write.
package layout

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf16"

	"google.golang.org/api/docs/v1"

	"dsigen/internal/model"
	"dsigen/internal/table"
)

// Columns are the fixed grid headers.
var Columns = model.Columns

const NumColumns = int64(len(Columns))

// ErrNotTable is returned when a table planner is handed a structural
// element that is not a table.
var ErrNotTable = errors.New("layout: element is not a table")

const (
	borderWidthPt = 1
	fontSizePt    = 12
	fontFamily    = "Calibri"
	marginPt      = 28.35
)

var (
	black        = rgb(0, 0, 0)
	white        = rgb(1, 1, 1)
	red          = rgb(1, 0, 0)
	headerShade  = rgb(0.4, 0.4, 0.4)
	specialShade = rgb(1, 0.8, 0.8)
	stripeShade  = rgb(0.85, 0.85, 0.85)
)

// Section headings set in bold, in document order.
var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`1\.\s+OPERAÇÕES:`),
	regexp.MustCompile(`2\.\s+CURSOS E ESTÁGIOS`),
	regexp.MustCompile(`3\.\s+DATAS COMEMORATIVAS E FERIADOS`),
	regexp.MustCompile(`4\.\s+PERÍODO`),
	regexp.MustCompile(`5\.\s+FORMATURA GERAL`),
	regexp.MustCompile(`6\.\s+ATIVIDADES FUTURAS`),
	regexp.MustCompile(`7\.\s+SU`),
	regexp.MustCompile(`8\.\s+ATIVIDADES PLANEJADAS E NÃO EXECUTADAS`),
}

var weekendLabels = []string{"SÁB", "DOM"}

// rgb builds a colour that keeps zero components on the wire.
func rgb(r, g, b float64) *docs.OptionalColor {
	return &docs.OptionalColor{Color: &docs.Color{RgbColor: &docs.RgbColor{
		Red: r, Green: g, Blue: b,
		ForceSendFields: []string{"Red", "Green", "Blue"},
	}}}
}

func pt(v float64) *docs.Dimension {
	return &docs.Dimension{Magnitude: v, Unit: "PT"}
}

// InsertTable plans a grid of one header row plus len(rows) rows at index.
func InsertTable(rows []model.TableRow, index int64) *docs.Request {
	return &docs.Request{
		InsertTable: &docs.InsertTableRequest{
			Rows:     int64(len(rows)) + 1,
			Columns:  NumColumns,
			Location: &docs.Location{Index: index},
		},
	}
}

// cellStart is the offset of the first paragraph of a cell.
func cellStart(cell *docs.TableCell) (int64, bool) {
	if cell == nil || len(cell.Content) == 0 {
		return 0, false
	}
	return cell.Content[0].StartIndex, true
}

// FillTable plans the header labels and the cell text of rows into the
// table el. Rows beyond the grid's size are skipped.
func FillTable(el *docs.StructuralElement, rows []model.TableRow) (*OffsetBatch, error) {
	if el == nil || el.Table == nil {
		return nil, ErrNotTable
	}
	grid := el.Table.TableRows
	batch := &OffsetBatch{}

	fill := func(tr *docs.TableRow, values []string) error {
		for col, cell := range tr.TableCells {
			if col >= len(values) {
				break
			}
			start, ok := cellStart(cell)
			if !ok {
				continue
			}
			if err := batch.InsertText(start, strings.TrimSpace(values[col])); err != nil {
				return err
			}
		}
		return nil
	}

	if len(grid) > 0 {
		if err := fill(grid[0], Columns[:]); err != nil {
			return nil, err
		}
	}
	for i, r := range rows {
		if i+1 >= len(grid) {
			break
		}
		if err := fill(grid[i+1], r.Cells()); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func cellRange(tableStart, row, col, rowSpan int64) *docs.TableRange {
	return &docs.TableRange{
		TableCellLocation: &docs.TableCellLocation{
			TableStartLocation: &docs.Location{Index: tableStart},
			RowIndex:           row,
			ColumnIndex:        col,
		},
		RowSpan:    rowSpan,
		ColumnSpan: 1,
	}
}

func background(tableStart, row, col int64, c *docs.OptionalColor) *docs.Request {
	return &docs.Request{
		UpdateTableCellStyle: &docs.UpdateTableCellStyleRequest{
			TableRange:     cellRange(tableStart, row, col, 1),
			TableCellStyle: &docs.TableCellStyle{BackgroundColor: c},
			Fields:         "backgroundColor",
		},
	}
}

// StyleTable plans borders, shading, centring and date-cell merges for a
// filled table. Day blocks alternate grey and white; special blocks are
// highlighted and leave the alternation untouched. Merges come last since
// they move cell content.
func StyleTable(el *docs.StructuralElement, rows []model.TableRow) ([]*docs.Request, error) {
	if el == nil || el.Table == nil {
		return nil, ErrNotTable
	}
	start := el.StartIndex
	grid := el.Table.TableRows
	var reqs []*docs.Request

	border := &docs.TableCellBorder{Color: black, Width: pt(borderWidthPt), DashStyle: "SOLID"}
	for r := range grid {
		for c := int64(0); c < NumColumns; c++ {
			reqs = append(reqs, &docs.Request{
				UpdateTableCellStyle: &docs.UpdateTableCellStyleRequest{
					TableRange: cellRange(start, int64(r), c, 1),
					TableCellStyle: &docs.TableCellStyle{
						BorderTop:    border,
						BorderBottom: border,
						BorderLeft:   border,
						BorderRight:  border,
					},
					Fields: "borderTop,borderBottom,borderLeft,borderRight",
				},
			})
		}
	}

	for c := int64(0); c < NumColumns; c++ {
		reqs = append(reqs, background(start, 0, c, headerShade))
	}

	blocks := table.Blocks(rows)
	stripe := true
	for _, b := range blocks {
		shade := white
		switch {
		case b.Special:
			shade = specialShade
		case stripe:
			shade = stripeShade
		}
		for i := 0; i < b.Len; i++ {
			for c := int64(0); c < NumColumns; c++ {
				reqs = append(reqs, background(start, int64(b.Start+i+1), c, shade))
			}
		}
		if !b.Special {
			stripe = !stripe
		}
	}

	for r := 0; r <= len(rows) && r < len(grid); r++ {
		for _, cell := range grid[r].TableCells {
			if len(cell.Content) == 0 {
				continue
			}
			p := cell.Content[0]
			reqs = append(reqs, &docs.Request{
				UpdateParagraphStyle: &docs.UpdateParagraphStyleRequest{
					Range:          &docs.Range{StartIndex: p.StartIndex, EndIndex: p.EndIndex},
					ParagraphStyle: &docs.ParagraphStyle{Alignment: "CENTER"},
					Fields:         "alignment",
				},
			})
		}
	}

	for _, b := range blocks {
		if b.Len > 1 {
			reqs = append(reqs, &docs.Request{
				MergeTableCells: &docs.MergeTableCellsRequest{
					TableRange: cellRange(start, int64(b.Start+1), 0, int64(b.Len)),
				},
			})
		}
	}
	return reqs, nil
}

// HeaderText plans bold white text for the header row labels.
func HeaderText(el *docs.StructuralElement) ([]*docs.Request, error) {
	if el == nil || el.Table == nil {
		return nil, ErrNotTable
	}
	if len(el.Table.TableRows) == 0 {
		return nil, nil
	}
	var reqs []*docs.Request
	for _, cell := range el.Table.TableRows[0].TableCells {
		if len(cell.Content) == 0 {
			continue
		}
		p := cell.Content[0]
		if p.EndIndex-1 <= p.StartIndex {
			continue
		}
		reqs = append(reqs, &docs.Request{
			UpdateTextStyle: &docs.UpdateTextStyleRequest{
				Range:     &docs.Range{StartIndex: p.StartIndex, EndIndex: p.EndIndex - 1},
				TextStyle: &docs.TextStyle{Bold: true, ForegroundColor: white},
				Fields:    "bold,foregroundColor",
			},
		})
	}
	return reqs, nil
}

// DocumentStyle plans the page-wide style: font and size over the body,
// margins, bold section headings and red weekend labels in the date column
// of every table.
func DocumentStyle(doc *docs.Document) []*docs.Request {
	end := EndIndex(doc)
	var reqs []*docs.Request
	if end > 2 {
		reqs = append(reqs, &docs.Request{
			UpdateTextStyle: &docs.UpdateTextStyleRequest{
				Range: &docs.Range{StartIndex: 1, EndIndex: end - 1},
				TextStyle: &docs.TextStyle{
					FontSize:           pt(fontSizePt),
					WeightedFontFamily: &docs.WeightedFontFamily{FontFamily: fontFamily},
				},
				Fields: "fontSize,weightedFontFamily",
			},
		})
	}
	reqs = append(reqs, &docs.Request{
		UpdateDocumentStyle: &docs.UpdateDocumentStyleRequest{
			DocumentStyle: &docs.DocumentStyle{
				MarginTop:    pt(marginPt),
				MarginBottom: pt(marginPt),
				MarginLeft:   pt(marginPt),
				MarginRight:  pt(marginPt),
			},
			Fields: "marginTop,marginBottom,marginLeft,marginRight",
		},
	})

	if doc == nil || doc.Body == nil {
		return reqs
	}

	for _, re := range headingPatterns {
		if r, ok := findRun(doc.Body.Content, re); ok {
			reqs = append(reqs, &docs.Request{
				UpdateTextStyle: &docs.UpdateTextStyleRequest{
					Range:     r,
					TextStyle: &docs.TextStyle{Bold: true},
					Fields:    "bold",
				},
			})
		}
	}

	for _, el := range doc.Body.Content {
		if el.Table == nil {
			continue
		}
		for i, tr := range el.Table.TableRows {
			if i == 0 || len(tr.TableCells) == 0 {
				continue
			}
			for _, run := range runs(tr.TableCells[0].Content) {
				if !containsAny(run.TextRun.Content, weekendLabels) {
					continue
				}
				reqs = append(reqs, &docs.Request{
					UpdateTextStyle: &docs.UpdateTextStyleRequest{
						Range:     &docs.Range{StartIndex: run.StartIndex, EndIndex: run.EndIndex},
						TextStyle: &docs.TextStyle{ForegroundColor: red},
						Fields:    "foregroundColor",
					},
				})
			}
		}
	}
	return reqs
}

// runs lists the text runs of the paragraphs directly under content.
func runs(content []*docs.StructuralElement) []*docs.ParagraphElement {
	var out []*docs.ParagraphElement
	for _, el := range content {
		if el.Paragraph == nil {
			continue
		}
		for _, pe := range el.Paragraph.Elements {
			if pe.TextRun != nil {
				out = append(out, pe)
			}
		}
	}
	return out
}

// findRun locates the first match of re in body-level paragraphs and
// returns its document range.
func findRun(content []*docs.StructuralElement, re *regexp.Regexp) (*docs.Range, bool) {
	for _, pe := range runs(content) {
		text := pe.TextRun.Content
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		start := pe.StartIndex + utf16Len(text[:loc[0]])
		return &docs.Range{StartIndex: start, EndIndex: start + utf16Len(text[loc[0]:loc[1]])}, true
	}
	return nil, false
}

// utf16Len counts s in UTF-16 code units, the unit of document offsets.
func utf16Len(s string) int64 {
	var n int64
	for _, r := range s {
		n += int64(utf16.RuneLen(r))
	}
	return n
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// LastTable returns the last table in the document body.
func LastTable(doc *docs.Document) (*docs.StructuralElement, bool) {
	if doc == nil || doc.Body == nil {
		return nil, false
	}
	for i := len(doc.Body.Content) - 1; i >= 0; i-- {
		if el := doc.Body.Content[i]; el.Table != nil {
			return el, true
		}
	}
	return nil, false
}

// EndIndex is the end offset of the body. Text is appended at EndIndex-1;
// an empty body reports 2 so appends land at the first valid offset.
func EndIndex(doc *docs.Document) int64 {
	if doc == nil || doc.Body == nil || len(doc.Body.Content) == 0 {
		return 2
	}
	return doc.Body.Content[len(doc.Body.Content)-1].EndIndex
}
