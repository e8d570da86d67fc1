package layout

import (
	"errors"
	"fmt"
	"sort"

	"google.golang.org/api/docs/v1"
)

// ErrNegativeOffset is returned when an insertion targets an offset below
// zero.
var ErrNegativeOffset = errors.New("layout: negative document offset")

type insertion struct {
	offset int64
	text   string
	seq    int
}

// OffsetBatch collects text insertions planned against one snapshot of a
// document and emits them so that no insertion shifts the offset of one
// emitted after it: descending offset, and reverse insertion order among
// equal offsets. Text added at the same offset therefore reads in the
// order it was added.
type OffsetBatch struct {
	items []insertion
}

// InsertText plans text at offset. Empty text is ignored.
func (b *OffsetBatch) InsertText(offset int64, text string) error {
	if offset < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeOffset, offset)
	}
	if text == "" {
		return nil
	}
	b.items = append(b.items, insertion{offset: offset, text: text, seq: len(b.items)})
	return nil
}

func (b *OffsetBatch) Len() int {
	return len(b.items)
}

// Requests returns the planned insertions in safe application order.
func (b *OffsetBatch) Requests() []*docs.Request {
	items := make([]insertion, len(b.items))
	copy(items, b.items)
	sort.Slice(items, func(i, j int) bool {
		if items[i].offset != items[j].offset {
			return items[i].offset > items[j].offset
		}
		return items[i].seq > items[j].seq
	})

	out := make([]*docs.Request, 0, len(items))
	for _, it := range items {
		out = append(out, &docs.Request{
			InsertText: &docs.InsertTextRequest{
				Location: &docs.Location{Index: it.offset},
				Text:     it.text,
			},
		})
	}
	return out
}
