package decode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/common"
)

// Decoder turns uploaded CSV and Excel files into Tables.
type Decoder struct {
	maxSize int64
	logger  *slog.Logger
}

// NewDecoder returns a Decoder rejecting files larger than maxSize bytes.
// A non-positive maxSize selects the 10 MiB default.
func NewDecoder(maxSize int64, logger *slog.Logger) *Decoder {
	if maxSize <= 0 {
		maxSize = constants.MaxImportFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{maxSize: maxSize, logger: logger}
}

// MaxSize is the configured size ceiling.
func (d *Decoder) MaxSize() int64 { return d.maxSize }

// Ext returns the normalized extension of a file name.
func Ext(name string) string {
	return constants.NormalizeExt(filepath.Ext(name))
}

// Check validates the extension and declared size without reading content.
func (d *Decoder) Check(src Source) error {
	if !constants.IsAllowedExt(Ext(src.Name())) {
		return common.ErrUnsupportedType
	}
	if src.Size() > d.maxSize {
		return d.tooLarge()
	}
	return nil
}

func (d *Decoder) tooLarge() error {
	if d.maxSize == constants.MaxImportFileSize {
		return common.ErrTooLarge
	}
	return common.NewAppError(common.CodeTooLarge,
		fmt.Sprintf("File is too large. Maximum size is %s.", humanize.IBytes(uint64(d.maxSize))), nil)
}

// Decode validates src and parses it into a Table.
func (d *Decoder) Decode(ctx context.Context, src Source) (*Table, error) {
	if err := d.Check(src); err != nil {
		d.logger.Warn("import.decode.rejected", "file", src.Name(), "size", src.Size(), "error", err)
		return nil, err
	}

	data, err := d.readAll(src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext := Ext(src.Name())
	var table *Table
	if constants.IsSpreadsheetExt(ext) {
		table, err = decodeWorkbook(ctx, data)
	} else {
		table, err = decodeCSV(ctx, data)
	}
	if err != nil {
		d.logger.Warn("import.decode.failed", "file", src.Name(), "ext", ext, "error", err)
		return nil, err
	}

	d.logger.Info("import.decode.ok", "file", src.Name(), "ext", ext,
		"columns", len(table.Headers), "rows", len(table.Rows))
	return table, nil
}

// readAll reads at most maxSize bytes; a source that lied about its size is
// still rejected.
func (d *Decoder) readAll(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, common.ParseFailure(err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, d.maxSize+1))
	if err != nil {
		return nil, common.ParseFailure(err)
	}
	if n > d.maxSize {
		return nil, d.tooLarge()
	}
	return buf.Bytes(), nil
}

func trimCell(s string) string {
	return strings.TrimSpace(s)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
