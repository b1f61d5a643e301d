package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/reports"
)

// Repository is the receipt store as read by exports.
type Repository interface {
	reports.Repository
}

const (
	receiptsSheet = "Receipts"
	summarySheet  = "Summary"
)

// Service produces XLSX bytes for exports.
type Service struct {
	repo    Repository
	reports *reports.Service
	now     func() time.Time
	logger  *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, reports: reports.NewService(repo, logger), now: time.Now, logger: logger}
}

// Request selects the receipts to export.
// If only From is provided -> From..today (inclusive).
// If only To is provided   -> beginning..To (inclusive).
// If neither is provided   -> all receipts.
type Request struct {
	From     string
	To       string
	ClientID int64
}

// ExportReceiptsXLSX returns a workbook with a Receipts sheet and a Summary
// sheet of totals by category, client and month.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	if req.From != "" && req.To == "" {
		req.To = s.now().UTC().Format(time.DateOnly)
	}

	summary, err := s.reports.Summary(ctx, reports.Request{From: req.From, To: req.To, ClientID: req.ClientID})
	if err != nil {
		return nil, err
	}
	recs, err := s.repo.ListReceipts(ctx, entity.ReceiptFilter{From: req.From, To: req.To, ClientID: req.ClientID})
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	clients, err := s.repo.Clients(ctx)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), receiptsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	if err := writeReceipts(f, recs, categories, clients); err != nil {
		return nil, err
	}
	if err := writeSummary(f, summary); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"from", req.From,
		"to", req.To,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeReceipts(f *excelize.File, recs []entity.Receipt, categories []entity.Category, clients []entity.Client) error {
	headers := []any{"Date", "Vendor", "Category", "Client", "Amount", "Description", "Status", "Tags"}
	if err := f.SetSheetRow(receiptsSheet, "A1", &headers); err != nil {
		return err
	}

	catName := make(map[int64]string, len(categories))
	for _, c := range categories {
		catName[c.ID] = c.Name
	}
	clientName := make(map[int64]string, len(clients))
	for _, c := range clients {
		clientName[c.ID] = c.Name
	}

	for i, r := range recs {
		client := ""
		if r.ClientID != nil {
			client = clientName[*r.ClientID]
		}
		row := []any{
			r.Date,
			r.Vendor,
			catName[r.CategoryID],
			client,
			r.Amount,
			truncate(r.Description, 140),
			r.Status,
			strings.Join(r.Tags, ", "),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(receiptsSheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(receiptsSheet, "A", "A", 12) // date
	_ = f.SetColWidth(receiptsSheet, "B", "B", 28) // vendor
	_ = f.SetColWidth(receiptsSheet, "C", "D", 22) // category, client
	_ = f.SetColWidth(receiptsSheet, "E", "E", 12) // amount
	_ = f.SetColWidth(receiptsSheet, "F", "F", 48) // description
	return nil
}

func writeSummary(f *excelize.File, sum *reports.Summary) error {
	row := 1
	put := func(values ...any) error {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		row++
		return f.SetSheetRow(summarySheet, cell, &values)
	}

	if err := put("Receipts", sum.Count); err != nil {
		return err
	}
	if err := put("Total", sum.Total.InexactFloat64()); err != nil {
		return err
	}
	sections := []struct {
		title   string
		buckets []reports.Bucket
	}{
		{"Category", sum.ByCategory},
		{"Client", sum.ByClient},
		{"Month", sum.ByMonth},
	}
	for _, sec := range sections {
		row++
		if err := put(sec.title, "Count", "Total"); err != nil {
			return err
		}
		for _, b := range sec.buckets {
			if err := put(b.Label, b.Count, b.Total.InexactFloat64()); err != nil {
				return err
			}
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 26)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
