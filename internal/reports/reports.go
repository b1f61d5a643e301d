// Package reports aggregates stored receipts into totals for a date window.
package reports

import (
	"context"
	"log/slog"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
)

// Repository is the read side of the receipt store.
type Repository interface {
	ListReceipts(ctx context.Context, filter entity.ReceiptFilter) ([]entity.Receipt, error)
	Categories(ctx context.Context) ([]entity.Category, error)
	Clients(ctx context.Context) ([]entity.Client, error)
}

// Bucket is one aggregated group.
type Bucket struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// Summary holds totals overall and by category, client and month.
type Summary struct {
	From       string          `json:"from,omitempty"`
	To         string          `json:"to,omitempty"`
	Count      int             `json:"count"`
	Total      decimal.Decimal `json:"total"`
	ByCategory []Bucket        `json:"by_category"`
	ByClient   []Bucket        `json:"by_client"`
	ByMonth    []Bucket        `json:"by_month"`
}

// Request selects the window. Empty bounds are open.
type Request struct {
	From     string
	To       string
	ClientID int64
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Summary totals every receipt in the window. Category and client buckets
// are ordered by total, largest first; months are chronological.
func (s *Service) Summary(ctx context.Context, req Request) (*Summary, error) {
	v := common.NewValidator().
		Field("from", req.From, common.OptionalDate).
		Field("to", req.To, common.OptionalDate)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	receipts, err := s.repo.ListReceipts(ctx, entity.ReceiptFilter{From: req.From, To: req.To, ClientID: req.ClientID})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list receipts: %v", err)
	}
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list categories: %v", err)
	}
	clients, err := s.repo.Clients(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list clients: %v", err)
	}

	catNames := make(map[string]string, len(categories))
	for _, c := range categories {
		catNames[itoa(c.ID)] = c.Name
	}
	clientNames := make(map[string]string, len(clients))
	for _, c := range clients {
		clientNames[itoa(c.ID)] = c.Name
	}

	out := &Summary{From: req.From, To: req.To, Total: decimal.Zero}
	byCat, byClient, byMonth := newGroup(), newGroup(), newGroup()
	for _, r := range receipts {
		amt := decimal.NewFromFloat(r.Amount)
		out.Count++
		out.Total = out.Total.Add(amt)

		catKey := itoa(r.CategoryID)
		byCat.add(catKey, labelOr(catNames[catKey], "Unknown"), amt)

		if r.ClientID == nil {
			byClient.add("", "No client", amt)
		} else {
			key := itoa(*r.ClientID)
			byClient.add(key, labelOr(clientNames[key], "Unknown client"), amt)
		}

		if len(r.Date) >= 7 {
			byMonth.add(r.Date[:7], r.Date[:7], amt)
		}
	}
	out.ByCategory = byCat.byTotal()
	out.ByClient = byClient.byTotal()
	out.ByMonth = byMonth.byKey()

	s.logger.Info("report summary built", "from", req.From, "to", req.To, "receipts", out.Count, "total", out.Total.StringFixed(2))
	return out, nil
}

type group struct {
	buckets map[string]*Bucket
}

func newGroup() *group { return &group{buckets: map[string]*Bucket{}} }

func (g *group) add(key, label string, amt decimal.Decimal) {
	b, ok := g.buckets[key]
	if !ok {
		b = &Bucket{Key: key, Label: label, Total: decimal.Zero}
		g.buckets[key] = b
	}
	b.Count++
	b.Total = b.Total.Add(amt)
}

func (g *group) list() []Bucket {
	out := make([]Bucket, 0, len(g.buckets))
	for _, b := range g.buckets {
		out = append(out, *b)
	}
	return out
}

func (g *group) byTotal() []Bucket {
	out := g.list()
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func (g *group) byKey() []Bucket {
	out := g.list()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func labelOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
