// Package analyze summarises a decoded upload for review before import.
package analyze

import (
	"github.com/shopspring/decimal"

	"github.com/taxsyncpro/taxsync/constants"
	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/importer/classify"
	"github.com/taxsyncpro/taxsync/internal/importer/coerce"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
)

// MaxSamples is the number of example values kept per column.
const MaxSamples = 10

type ColumnSummary struct {
	Name     string   `json:"name"`
	Samples  []string `json:"samples"`
	Distinct int      `json:"distinct"`
}

// AmountStats covers rows whose amount parses to a positive number.
type AmountStats struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type Analysis struct {
	TotalRows      int                  `json:"total_rows"`
	Columns        []ColumnSummary      `json:"columns"`
	Mapping        entity.ColumnMapping `json:"mapping"`
	CategoryCounts map[string]int       `json:"category_counts"`
	Amounts        *AmountStats         `json:"amounts,omitempty"`
}

type Analyzer struct {
	classifier *classify.Classifier
}

func New(classifier *classify.Classifier) *Analyzer {
	if classifier == nil {
		classifier = classify.New(nil)
	}
	return &Analyzer{classifier: classifier}
}

// Analyze builds the review summary for table under mapping. Category
// predictions resolve against categories.
func (a *Analyzer) Analyze(table *decode.Table, mapping entity.ColumnMapping, categories []entity.Category) (*Analysis, error) {
	if table == nil || len(table.Headers) == 0 {
		return nil, common.ErrEmptyColumns
	}
	if len(table.Rows) == 0 {
		return nil, common.ErrNoData
	}

	out := &Analysis{
		TotalRows:      len(table.Rows),
		Columns:        summarizeColumns(table),
		Mapping:        mapping,
		CategoryCounts: make(map[string]int),
	}

	for _, row := range table.Rows {
		name := string(constants.Other)
		text := classify.Text(row[mapping.Vendor], row[mapping.Description])
		if cat := a.classifier.Classify(text, categories); cat != nil {
			name = cat.Name
		}
		out.CategoryCounts[name]++
	}

	if mapping.Amount != "" {
		out.Amounts = amountStats(table.Rows, mapping.Amount)
	}
	return out, nil
}

func summarizeColumns(table *decode.Table) []ColumnSummary {
	cols := make([]ColumnSummary, 0, len(table.Headers))
	for _, h := range table.Headers {
		seen := make(map[string]struct{})
		col := ColumnSummary{Name: h, Samples: []string{}}
		for _, row := range table.Rows {
			v := row[h]
			if v == "" {
				continue
			}
			if len(col.Samples) < MaxSamples {
				col.Samples = append(col.Samples, v)
			}
			seen[v] = struct{}{}
		}
		col.Distinct = len(seen)
		cols = append(cols, col)
	}
	return cols
}

func amountStats(rows []decode.Row, column string) *AmountStats {
	var (
		sum, lo, hi decimal.Decimal
		count       int
	)
	for _, row := range rows {
		v, ok := coerce.ParseAmount(row[column])
		if !ok || v <= 0 {
			continue
		}
		d := decimal.NewFromFloat(v)
		if count == 0 || d.LessThan(lo) {
			lo = d
		}
		if count == 0 || d.GreaterThan(hi) {
			hi = d
		}
		sum = sum.Add(d)
		count++
	}
	if count == 0 {
		return nil
	}
	mean := sum.Div(decimal.NewFromInt(int64(count)))
	return &AmountStats{
		Count: count,
		Sum:   sum.InexactFloat64(),
		Mean:  mean.InexactFloat64(),
		Min:   lo.InexactFloat64(),
		Max:   hi.InexactFloat64(),
	}
}
