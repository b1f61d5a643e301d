package decode

// Row maps a header to the cell value in that column. Every header of the
// owning Table is present as a key.
type Row map[string]string

// Table is the decoded form of an upload. Headers is the key universe for
// every row, in file order.
type Table struct {
	Headers []string
	Rows    []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasHeader reports whether name is one of the table's columns.
func (t *Table) HasHeader(name string) bool {
	for _, h := range t.Headers {
		if h == name {
			return true
		}
	}
	return false
}

// headerIndex maps raw header cells to the usable header list. Cells that
// trim to "" are dropped; a repeated name gets the first numeric suffix that
// no other column uses, so no column silently overwrites another.
type headerIndex struct {
	names   []string
	columns []int
}

func buildHeaderIndex(raw []string) headerIndex {
	var idx headerIndex
	taken := make(map[string]bool, len(raw))
	for _, cell := range raw {
		if name := trimCell(cell); name != "" {
			taken[name] = true
		}
	}
	used := make(map[string]bool, len(raw))
	suffix := make(map[string]int)
	for i, cell := range raw {
		name := trimCell(cell)
		if name == "" {
			continue
		}
		if used[name] {
			base := name
			for {
				suffix[base]++
				name = base + "_" + itoa(suffix[base])
				if !taken[name] && !used[name] {
					break
				}
			}
		}
		used[name] = true
		idx.names = append(idx.names, name)
		idx.columns = append(idx.columns, i)
	}
	return idx
}

// row zips record against the header order. Missing cells become "". The
// second result is false when every value is empty.
func (h headerIndex) row(record []string) (Row, bool) {
	r := make(Row, len(h.names))
	nonEmpty := false
	for i, name := range h.names {
		col := h.columns[i]
		v := ""
		if col < len(record) {
			v = trimCell(record[col])
		}
		if v != "" {
			nonEmpty = true
		}
		r[name] = v
	}
	return r, nonEmpty
}
