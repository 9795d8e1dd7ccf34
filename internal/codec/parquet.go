// Package codec converts observation tables to and from parquet bytes.
package codec

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"go-hicp-pipeline/internal/model"
)

// EncodeTable writes the table as one in-memory parquet file. Only the
// columns listed on the table are written, in their listed order.
func EncodeTable(t *model.Table) ([]byte, error) {
	pool := memory.NewGoAllocator()

	fields := make([]arrow.Field, 0, len(t.Columns))
	builders := make([]array.Builder, 0, len(t.Columns))

	for _, col := range t.Columns {
		switch col {
		case model.ColTime:
			fields = append(fields, arrow.Field{Name: col, Type: arrow.FixedWidthTypes.Date32, Nullable: true})
			builders = append(builders, array.NewDate32Builder(pool))
		case model.ColValue:
			fields = append(fields, arrow.Field{Name: col, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
			builders = append(builders, array.NewFloat64Builder(pool))
		case model.ColGeo, model.ColCoicop, model.ColUnit, model.ColProcessedAtUTC, model.ColRawBlob:
			fields = append(fields, arrow.Field{Name: col, Type: arrow.BinaryTypes.String})
			builders = append(builders, array.NewStringBuilder(pool))
		default:
			return nil, fmt.Errorf("unknown column %q", col)
		}
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for _, row := range t.Rows {
		for i, col := range t.Columns {
			switch col {
			case model.ColTime:
				b := builders[i].(*array.Date32Builder)
				if row.Time == nil {
					b.AppendNull()
				} else {
					b.Append(arrow.Date32FromTime(*row.Time))
				}
			case model.ColValue:
				b := builders[i].(*array.Float64Builder)
				if row.Value == nil {
					b.AppendNull()
				} else {
					b.Append(*row.Value)
				}
			case model.ColGeo:
				builders[i].(*array.StringBuilder).Append(row.Geo)
			case model.ColCoicop:
				builders[i].(*array.StringBuilder).Append(row.Coicop)
			case model.ColUnit:
				builders[i].(*array.StringBuilder).Append(row.Unit)
			case model.ColProcessedAtUTC:
				builders[i].(*array.StringBuilder).Append(row.ProcessedAtUTC)
			case model.ColRawBlob:
				builders[i].(*array.StringBuilder).Append(row.RawBlob)
			}
		}
	}

	schema := arrow.NewSchema(fields, nil)
	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		cols[i] = b.NewArray()
	}
	record := array.NewRecord(schema, cols, int64(len(t.Rows)))
	defer record.Release()

	var buf bytes.Buffer
	writer, err := pqarrow.NewFileWriter(schema, &buf, nil, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write parquet record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeTable reads a parquet file back into an observation table. Column
// presence follows the file's schema; nulls map to nil for time/value and
// "" for string columns.
func DecodeTable(ctx context.Context, data []byte) (*model.Table, error) {
	rdr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer rdr.Close()

	arrowRdr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}
	tbl, err := arrowRdr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet table: %w", err)
	}
	defer tbl.Release()

	out := &model.Table{
		Columns: make([]string, 0, tbl.NumCols()),
		Rows:    make([]model.Observation, tbl.NumRows()),
	}

	for i := 0; i < int(tbl.NumCols()); i++ {
		name := tbl.Schema().Field(i).Name
		out.Columns = append(out.Columns, name)

		row := 0
		for _, chunk := range tbl.Column(i).Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				if err := setCell(&out.Rows[row], name, chunk, j); err != nil {
					return nil, err
				}
				row++
			}
		}
	}

	return out, nil
}

func setCell(obs *model.Observation, col string, chunk arrow.Array, j int) error {
	switch col {
	case model.ColTime:
		a, ok := chunk.(*array.Date32)
		if !ok {
			return fmt.Errorf("column time has unexpected type %s", chunk.DataType())
		}
		if !a.IsNull(j) {
			t := a.Value(j).ToTime()
			obs.Time = &t
		}
	case model.ColValue:
		a, ok := chunk.(*array.Float64)
		if !ok {
			return fmt.Errorf("column value has unexpected type %s", chunk.DataType())
		}
		if !a.IsNull(j) {
			v := a.Value(j)
			obs.Value = &v
		}
	case model.ColGeo, model.ColCoicop, model.ColUnit, model.ColProcessedAtUTC, model.ColRawBlob:
		a, ok := chunk.(*array.String)
		if !ok {
			return fmt.Errorf("column %s has unexpected type %s", col, chunk.DataType())
		}
		var s string
		if !a.IsNull(j) {
			s = a.Value(j)
		}
		switch col {
		case model.ColGeo:
			obs.Geo = s
		case model.ColCoicop:
			obs.Coicop = s
		case model.ColUnit:
			obs.Unit = s
		case model.ColProcessedAtUTC:
			obs.ProcessedAtUTC = s
		case model.ColRawBlob:
			obs.RawBlob = s
		}
	default:
		return fmt.Errorf("unknown column %q in parquet file", col)
	}
	return nil
}
