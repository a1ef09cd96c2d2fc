package trace

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// Format selects an export encoding.
type Format string

const (
	// FormatCSV writes one header row plus one row per step.
	FormatCSV Format = "csv"

	// FormatJSONL writes one JSON object per line, matching the activation
	// log the run command emits.
	FormatJSONL Format = "jsonl"

	// FormatArrow writes an Arrow IPC file with one record batch.
	FormatArrow Format = "arrow"
)

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatJSONL, FormatArrow:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, jsonl, or arrow)", s)
	}
}

// Write encodes steps to w in the given format.
func Write(w io.Writer, f Format, steps []Step) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, steps)
	case FormatJSONL:
		return WriteJSONL(w, steps)
	case FormatArrow:
		return WriteArrow(w, steps)
	default:
		return fmt.Errorf("unknown export format %q", string(f))
	}
}

var csvHeader = []string{
	"step", "node", "case", "flipped", "leader",
	"primary_before", "primary_after", "secondary_before", "secondary_after",
}

// WriteCSV writes the trace as CSV with a header row.
func WriteCSV(w io.Writer, steps []Step) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range steps {
		row := []string{
			strconv.Itoa(s.Step),
			strconv.Itoa(s.Node),
			s.Case,
			strconv.FormatBool(s.Flipped),
			strconv.FormatBool(s.Leader),
			strconv.Itoa(int(s.PrimaryBefore)),
			strconv.Itoa(int(s.PrimaryAfter)),
			strconv.Itoa(s.SecondaryBefore),
			strconv.Itoa(s.SecondaryAfter),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", s.Step, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSONL writes the trace as newline-delimited JSON, one step per line.
func WriteJSONL(w io.Writer, steps []Step) error {
	enc := json.NewEncoder(w)
	for _, s := range steps {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("write jsonl step %d: %w", s.Step, err)
		}
	}
	return nil
}

func arrowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "step", Type: arrow.PrimitiveTypes.Int64},
		{Name: "node", Type: arrow.PrimitiveTypes.Int64},
		{Name: "case", Type: arrow.BinaryTypes.String},
		{Name: "flipped", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "leader", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "primary_before", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "primary_after", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "secondary_before", Type: arrow.PrimitiveTypes.Int64},
		{Name: "secondary_after", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
}

// seekBuffer is an in-memory io.WriteSeeker. The Arrow file writer requires a
// seekable target to lay out its footer, while WriteArrow promises to work
// with any io.Writer, so the IPC bytes are staged here and copied out whole.
type seekBuffer struct {
	buf []byte
	pos int64
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + int64(len(p)); end > int64(len(b.buf)) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:], p)
	b.pos += int64(len(p))
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = b.pos
	case io.SeekEnd:
		base = int64(len(b.buf))
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("seek: negative position %d", pos)
	}
	b.pos = pos
	return pos, nil
}

// WriteArrow writes the trace as an Arrow IPC file holding a single record
// batch. Columnar output keeps long sweeps cheap to load into analysis
// tooling that already speaks Arrow.
func WriteArrow(w io.Writer, steps []Step) error {
	pool := memory.NewGoAllocator()
	schema := arrowSchema()

	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	for _, s := range steps {
		b.Field(0).(*array.Int64Builder).Append(int64(s.Step))
		b.Field(1).(*array.Int64Builder).Append(int64(s.Node))
		b.Field(2).(*array.StringBuilder).Append(s.Case)
		b.Field(3).(*array.BooleanBuilder).Append(s.Flipped)
		b.Field(4).(*array.BooleanBuilder).Append(s.Leader)
		b.Field(5).(*array.Uint8Builder).Append(s.PrimaryBefore)
		b.Field(6).(*array.Uint8Builder).Append(s.PrimaryAfter)
		b.Field(7).(*array.Int64Builder).Append(int64(s.SecondaryBefore))
		b.Field(8).(*array.Int64Builder).Append(int64(s.SecondaryAfter))
	}

	rec := b.NewRecord()
	defer rec.Release()

	sb := &seekBuffer{}
	fw, err := ipc.NewFileWriter(sb, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return fmt.Errorf("open arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	if _, err := w.Write(sb.buf); err != nil {
		return fmt.Errorf("write arrow output: %w", err)
	}
	return nil
}
