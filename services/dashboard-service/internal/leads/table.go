// Package leads holds the in-memory result tables: lead rows plus an
// index-based selection set and filtered views over them.
package leads

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stoik/leaddesk/internal/models"
)

// AllStatuses disables the status filter
const AllStatuses = "all"

// Filter narrows a table view. The zero value matches every row.
type Filter struct {
	Status string `form:"status"`
	Query  string `form:"q"`
}

// Matches reports whether the lead passes both the status and search filters.
// Search is a case-insensitive substring match over company, website and status.
func (f Filter) Matches(l models.Lead) bool {
	if f.Status != "" && f.Status != AllStatuses && l.Status != f.Status {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(l.CompanyName), q) ||
		strings.Contains(strings.ToLower(l.WebsiteURL), q) ||
		strings.Contains(strings.ToLower(l.Status), q)
}

// Row is a lead together with its index in the full table
type Row struct {
	Index    int         `json:"index"`
	Selected bool        `json:"selected"`
	Lead     models.Lead `json:"lead"`
}

// IndexError reports a selection or lookup outside the table
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("row index %d out of range (table has %d rows)", e.Index, e.Len)
}

// Table is a list of leads with a selection set. It is not safe for
// concurrent use; callers guard it.
type Table struct {
	rows     []models.Lead
	selected map[int]struct{}
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{selected: make(map[int]struct{})}
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns a copy of all rows
func (t *Table) Rows() []models.Lead {
	rows := make([]models.Lead, len(t.rows))
	copy(rows, t.rows)
	return rows
}

// Prepend inserts rows at the top. Selected indices shift so the same rows
// stay selected.
func (t *Table) Prepend(rows ...models.Lead) {
	if len(rows) == 0 {
		return
	}
	shifted := make(map[int]struct{}, len(t.selected))
	for i := range t.selected {
		shifted[i+len(rows)] = struct{}{}
	}
	t.selected = shifted

	merged := make([]models.Lead, 0, len(rows)+len(t.rows))
	merged = append(merged, rows...)
	t.rows = append(merged, t.rows...)
}

// Merge updates rows that share a website with an incoming row and appends
// the rest. Rows without a website always append. The selection is kept.
func (t *Table) Merge(rows ...models.Lead) {
	for _, row := range rows {
		if i := t.indexOfWebsite(row); i >= 0 {
			t.rows[i] = row
			continue
		}
		t.rows = append(t.rows, row)
	}
}

func (t *Table) indexOfWebsite(l models.Lead) int {
	if !l.HasWebsite() {
		return -1
	}
	for i, r := range t.rows {
		if strings.EqualFold(r.WebsiteURL, l.WebsiteURL) {
			return i
		}
	}
	return -1
}

// Replace swaps every row and clears the selection
func (t *Table) Replace(rows []models.Lead) {
	t.rows = make([]models.Lead, len(rows))
	copy(t.rows, rows)
	t.ClearSelection()
}

// Toggle flips the selection state of one row
func (t *Table) Toggle(index int) error {
	if index < 0 || index >= len(t.rows) {
		return &IndexError{Index: index, Len: len(t.rows)}
	}
	if _, ok := t.selected[index]; ok {
		delete(t.selected, index)
	} else {
		t.selected[index] = struct{}{}
	}
	return nil
}

// SelectAll selects every row
func (t *Table) SelectAll() {
	for i := range t.rows {
		t.selected[i] = struct{}{}
	}
}

// ToggleAll implements the "select all" checkbox over a filtered view: when
// as many rows are selected as are visible the selection is cleared,
// otherwise exactly the visible rows become selected.
func (t *Table) ToggleAll(f Filter) {
	visible := t.matching(f)
	if len(t.selected) == len(visible) {
		t.ClearSelection()
		return
	}
	t.selected = make(map[int]struct{}, len(visible))
	for _, i := range visible {
		t.selected[i] = struct{}{}
	}
}

// ClearSelection deselects every row
func (t *Table) ClearSelection() {
	t.selected = make(map[int]struct{})
}

// Selected returns the selected indices in ascending order
func (t *Table) Selected() []int {
	indices := make([]int, 0, len(t.selected))
	for i := range t.selected {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}

// SelectedRows returns the selected leads in index order
func (t *Table) SelectedRows() []models.Lead {
	indices := t.Selected()
	rows := make([]models.Lead, 0, len(indices))
	for _, i := range indices {
		rows = append(rows, t.rows[i])
	}
	return rows
}

// AllSelected reports whether the table is non-empty and every row is selected
func (t *Table) AllSelected() bool {
	return len(t.rows) > 0 && len(t.selected) == len(t.rows)
}

// View returns the rows passing the filter, keeping their table indices
func (t *Table) View(f Filter) []Row {
	visible := t.matching(f)
	rows := make([]Row, 0, len(visible))
	for _, i := range visible {
		_, sel := t.selected[i]
		rows = append(rows, Row{Index: i, Selected: sel, Lead: t.rows[i]})
	}
	return rows
}

func (t *Table) matching(f Filter) []int {
	var indices []int
	for i, l := range t.rows {
		if f.Matches(l) {
			indices = append(indices, i)
		}
	}
	return indices
}
