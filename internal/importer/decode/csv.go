package decode

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"

	"github.com/taxsyncpro/taxsync/internal/common"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const ctxCheckEvery = 512

func decodeCSV(ctx context.Context, data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, common.ErrEmptyData
	}
	if err != nil {
		return nil, common.ParseFailure(err)
	}

	idx := buildHeaderIndex(header)
	if len(idx.names) == 0 {
		return nil, common.ErrNoHeaders
	}

	table := &Table{Headers: idx.names}
	for line := 0; ; line++ {
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.ParseFailure(err)
		}
		if row, ok := idx.row(record); ok {
			table.Rows = append(table.Rows, row)
		}
	}

	if len(table.Rows) == 0 {
		return nil, common.ErrEmptyData
	}
	return table, nil
}
