package gdocs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/docs/v1"

	appLog "dsigen/internal/log"
	"dsigen/internal/model"
	"dsigen/internal/retry"
)

func TestMain(m *testing.M) {
	appLog.Nop()
	m.Run()
}

// segment is either body text or a table of cell texts.
type segment struct {
	text  string
	cells [][]string
}

// fakeDocs keeps a coarse document model with Docs-style offsets: one
// paragraph per text segment, one paragraph per cell.
type fakeDocs struct {
	mu       sync.Mutex
	docs     map[string][]*segment
	requests map[string][]*docs.Request
	calls    int
	failAt   int
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string][]*segment{}, requests: map[string][]*docs.Request{}}
}

func (f *fakeDocs) Create(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("doc-%d", len(f.docs)+1)
	f.docs[id] = []*segment{{text: "\n"}}
	return id, nil
}

func (f *fakeDocs) Get(_ context.Context, id string) (*docs.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	segs, ok := f.docs[id]
	if !ok {
		return nil, errors.New("404")
	}
	return render(id, segs), nil
}

func (f *fakeDocs) BatchUpdate(_ context.Context, id string, reqs []*docs.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == f.failAt {
		return errors.New("503 backend error")
	}
	for _, r := range reqs {
		switch {
		case r.InsertText != nil:
			if err := f.insertText(id, r.InsertText.Location.Index, r.InsertText.Text); err != nil {
				return err
			}
		case r.InsertTable != nil:
			if err := f.insertTable(id, r.InsertTable.Location.Index, int(r.InsertTable.Rows), int(r.InsertTable.Columns)); err != nil {
				return err
			}
		}
		f.requests[id] = append(f.requests[id], r)
	}
	return nil
}

func runeLen(s string) int64 { return int64(len([]rune(s))) }

func insertAt(s string, at int64, text string) string {
	r := []rune(s)
	return string(r[:at]) + text + string(r[at:])
}

// walk visits text segments and table cells with their start offsets.
func walk(segs []*segment, text func(seg *segment, start int64) bool, cell func(seg *segment, r, c int, start int64) bool) {
	idx := int64(1)
	for _, seg := range segs {
		if seg.cells == nil {
			if text(seg, idx) {
				return
			}
			idx += runeLen(seg.text)
			continue
		}
		idx++
		for r := range seg.cells {
			idx++
			for c := range seg.cells[r] {
				idx++
				if cell(seg, r, c, idx) {
					return
				}
				idx += runeLen(seg.cells[r][c]) + 1
			}
		}
		idx++
	}
}

func (f *fakeDocs) insertText(id string, at int64, text string) error {
	done := false
	walk(f.docs[id], func(seg *segment, start int64) bool {
		if at >= start && at < start+runeLen(seg.text) {
			seg.text = insertAt(seg.text, at-start, text)
			done = true
		}
		return done
	}, func(seg *segment, r, c int, start int64) bool {
		if at >= start && at <= start+runeLen(seg.cells[r][c]) {
			seg.cells[r][c] = insertAt(seg.cells[r][c], at-start, text)
			done = true
		}
		return done
	})
	if !done {
		return fmt.Errorf("insertText: bad index %d", at)
	}
	return nil
}

// tableLen is the index span of a table segment; zero for text.
func tableLen(seg *segment) int64 {
	if seg.cells == nil {
		return 0
	}
	n := int64(2)
	for _, row := range seg.cells {
		n++
		for _, c := range row {
			n += runeLen(c) + 2
		}
	}
	return n
}

func (f *fakeDocs) insertTable(id string, at int64, rows, cols int) error {
	segs := f.docs[id]
	var out []*segment
	done := false
	idx := int64(1)
	for _, seg := range segs {
		if seg.cells != nil || done {
			idx += tableLen(seg)
			out = append(out, seg)
			continue
		}
		n := runeLen(seg.text)
		if at >= idx && at < idx+n {
			before, after := string([]rune(seg.text)[:at-idx]), string([]rune(seg.text)[at-idx:])
			cells := make([][]string, rows)
			for r := range cells {
				cells[r] = make([]string, cols)
			}
			if before != "" {
				out = append(out, &segment{text: before})
			}
			out = append(out, &segment{cells: cells}, &segment{text: after})
			done = true
			continue
		}
		idx += n
		out = append(out, seg)
	}
	if !done {
		return fmt.Errorf("insertTable: bad index %d", at)
	}
	f.docs[id] = out
	return nil
}

func render(id string, segs []*segment) *docs.Document {
	body := &docs.Body{Content: []*docs.StructuralElement{{EndIndex: 1, SectionBreak: &docs.SectionBreak{}}}}
	idx := int64(1)
	para := func(text string) *docs.StructuralElement {
		end := idx + runeLen(text)
		el := &docs.StructuralElement{StartIndex: idx, EndIndex: end, Paragraph: &docs.Paragraph{
			Elements: []*docs.ParagraphElement{{StartIndex: idx, EndIndex: end, TextRun: &docs.TextRun{Content: text}}},
		}}
		idx = end
		return el
	}
	for _, seg := range segs {
		if seg.cells == nil {
			body.Content = append(body.Content, para(seg.text))
			continue
		}
		el := &docs.StructuralElement{StartIndex: idx, Table: &docs.Table{Rows: int64(len(seg.cells))}}
		idx++
		for _, row := range seg.cells {
			tr := &docs.TableRow{StartIndex: idx}
			idx++
			for _, c := range row {
				idx++
				tr.TableCells = append(tr.TableCells, &docs.TableCell{Content: []*docs.StructuralElement{para(c + "\n")}})
			}
			el.Table.TableRows = append(el.Table.TableRows, tr)
		}
		idx++
		el.EndIndex = idx
		body.Content = append(body.Content, el)
	}
	return &docs.Document{DocumentId: id, Body: body}
}

func (f *fakeDocs) text(id string) string {
	var b strings.Builder
	for _, seg := range f.docs[id] {
		if seg.cells == nil {
			b.WriteString(seg.text)
			continue
		}
		for _, row := range seg.cells {
			b.WriteString("|" + strings.Join(row, "|") + "|\n")
		}
	}
	return b.String()
}

func testOptions() Options {
	return Options{
		FillChunk:  5,
		StyleChunk: 7,
		Retry:      retry.Policy{MaxAttempts: 3, Backoff: time.Millisecond},
	}
}

func sampleDraft() Draft {
	return Draft{
		Title:     "DIRETRIZ 001",
		Preamble:  "1. OPERAÇÕES:\n-\n\n4. PERÍODO\n",
		Interlude: "\n b. Semana (S+1)\n",
		Closing:   "\n7. SU\nSão Luís\n",
		WeekS: []model.TableRow{
			{Date: "09 JUN (SEG)", Time: "08:00", Activity: "TFM", Responsible: "S3"},
			{Time: "10:00", Activity: "Tiro", Responsible: "S3"},
			{Date: "14 JUN (SÁB)", Special: true},
		},
		WeekS1: []model.TableRow{
			{Date: "16 JUN (SEG)", Activity: "Marcha"},
		},
	}
}

func TestWriterCreate(t *testing.T) {
	f := newFakeDocs()
	w := NewWriter(f, testOptions())

	id, err := w.Create(context.Background(), sampleDraft())
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	assert.Equal(t,
		"1. OPERAÇÕES:\n-\n\n4. PERÍODO\n"+
			"|DATA|HORA|ATIVIDADE|LOCAL|UNIF|RESP|OBS|\n"+
			"|09 JUN (SEG)|08:00|TFM|||S3||\n"+
			"||10:00|Tiro|||S3||\n"+
			"|14 JUN (SÁB)|||||||\n"+
			"\n b. Semana (S+1)\n"+
			"|DATA|HORA|ATIVIDADE|LOCAL|UNIF|RESP|OBS|\n"+
			"|16 JUN (SEG)||Marcha|||||\n"+
			"\n7. SU\nSão Luís\n"+
			"\n",
		f.text(id))

	var merges, bold, margins int
	for _, r := range f.requests[id] {
		switch {
		case r.MergeTableCells != nil:
			merges++
		case r.UpdateTextStyle != nil && r.UpdateTextStyle.Fields == "bold":
			bold++
		case r.UpdateDocumentStyle != nil:
			margins++
		}
	}
	assert.Equal(t, 1, merges)
	assert.Equal(t, 3, bold)
	assert.Equal(t, 1, margins)
}

func TestFakeDocsTablesAfterTable(t *testing.T) {
	f := newFakeDocs()
	id, err := f.Create(context.Background(), "t")
	require.NoError(t, err)
	require.NoError(t, f.BatchUpdate(context.Background(), id, []*docs.Request{
		{InsertText: &docs.InsertTextRequest{Location: &docs.Location{Index: 1}, Text: "ab\n"}},
		{InsertTable: &docs.InsertTableRequest{Location: &docs.Location{Index: 3}, Rows: 1, Columns: 2}},
	}))

	// Text after the first table starts past its cells: 1 + "ab" + table(2 + 1 + 2*2).
	doc, err := f.Get(context.Background(), id)
	require.NoError(t, err)
	last := doc.Body.Content[len(doc.Body.Content)-1]
	assert.Equal(t, int64(10), last.StartIndex)

	require.NoError(t, f.BatchUpdate(context.Background(), id, []*docs.Request{
		{InsertText: &docs.InsertTextRequest{Location: &docs.Location{Index: 10}, Text: "cd"}},
		{InsertTable: &docs.InsertTableRequest{Location: &docs.Location{Index: 12}, Rows: 1, Columns: 1}},
	}))
	assert.Equal(t, "ab|||\ncd||\n\n\n", f.text(id))
}

func TestWriterRetriesInNewDocument(t *testing.T) {
	f := newFakeDocs()
	f.failAt = 3
	w := NewWriter(f, testOptions())

	id, err := w.Create(context.Background(), sampleDraft())
	require.NoError(t, err)
	assert.Equal(t, "doc-2", id)
	assert.Contains(t, f.text(id), "|16 JUN (SEG)||Marcha|||||")
}

type brokenDocs struct{ *fakeDocs }

func (b brokenDocs) BatchUpdate(context.Context, string, []*docs.Request) error {
	return errors.New("403 forbidden")
}

func TestWriterGivesUp(t *testing.T) {
	w := NewWriter(brokenDocs{newFakeDocs()}, testOptions())
	_, err := w.Create(context.Background(), sampleDraft())
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
}

func TestURL(t *testing.T) {
	assert.Equal(t, "https://docs.google.com/document/d/abc/edit", URL("abc"))
}
