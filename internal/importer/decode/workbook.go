package decode

import (
	"bytes"
	"context"

	"github.com/xuri/excelize/v2"

	"github.com/taxsyncpro/taxsync/internal/common"
)

// decodeWorkbook reads the first sheet of an Excel workbook. Legacy BIFF
// (.xls) content that excelize cannot open surfaces as a parse failure.
func decodeWorkbook(ctx context.Context, data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, common.ParseFailure(err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, common.ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, common.ParseFailure(err)
	}
	if len(rows) == 0 {
		return nil, common.ErrNoHeaders
	}

	idx := buildHeaderIndex(rows[0])
	if len(idx.names) == 0 {
		return nil, common.ErrNoHeaders
	}

	table := &Table{Headers: idx.names}
	for i, record := range rows[1:] {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
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
