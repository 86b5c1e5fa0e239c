package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoik/leaddesk/internal/models"
)

func sampleTable() *Table {
	t := NewTable()
	t.Merge(
		models.Lead{CompanyName: "Acme", WebsiteURL: "https://acme.io", Status: models.StatusPending},
		models.Lead{CompanyName: "Globex", WebsiteURL: "https://globex.com", Status: models.StatusDone},
		models.Lead{CompanyName: "Initech", WebsiteURL: "https://initech.net", Status: models.StatusPending},
	)
	return t
}

func TestToggle_IsReversible(t *testing.T) {
	table := sampleTable()

	require.NoError(t, table.Toggle(1))
	assert.Equal(t, []int{1}, table.Selected())

	require.NoError(t, table.Toggle(1))
	assert.Empty(t, table.Selected())
}

func TestToggle_OutOfRange(t *testing.T) {
	table := sampleTable()

	err := table.Toggle(3)
	var idxErr *IndexError
	require.ErrorAs(t, err, &idxErr)
	assert.Equal(t, 3, idxErr.Index)
	assert.Equal(t, 3, idxErr.Len)

	assert.Error(t, table.Toggle(-1))
	assert.Empty(t, table.Selected())
}

func TestSelectAll_IsIdempotent(t *testing.T) {
	table := sampleTable()

	table.SelectAll()
	first := table.Selected()
	table.SelectAll()

	assert.Equal(t, first, table.Selected())
	assert.Equal(t, []int{0, 1, 2}, table.Selected())
	assert.True(t, table.AllSelected())
}

func TestAllSelected_EmptyTable(t *testing.T) {
	table := NewTable()
	table.SelectAll()
	assert.False(t, table.AllSelected())
}

func TestToggleAll(t *testing.T) {
	t.Run("selects visible rows then clears", func(t *testing.T) {
		table := sampleTable()
		pending := Filter{Status: models.StatusPending}

		table.ToggleAll(pending)
		assert.Equal(t, []int{0, 2}, table.Selected())

		table.ToggleAll(pending)
		assert.Empty(t, table.Selected())
	})

	t.Run("partial selection becomes visible rows", func(t *testing.T) {
		table := sampleTable()
		require.NoError(t, table.Toggle(1))

		table.ToggleAll(Filter{})
		assert.Equal(t, []int{0, 1, 2}, table.Selected())
	})
}

func TestPrepend_ShiftsSelection(t *testing.T) {
	table := sampleTable()
	require.NoError(t, table.Toggle(0))
	require.NoError(t, table.Toggle(2))

	table.Prepend(models.Lead{CompanyName: "Umbrella"}, models.Lead{CompanyName: "Hooli"})

	assert.Equal(t, 5, table.Len())
	assert.Equal(t, "Umbrella", table.Rows()[0].CompanyName)
	selected := table.SelectedRows()
	require.Len(t, selected, 2)
	assert.Equal(t, "Acme", selected[0].CompanyName)
	assert.Equal(t, "Initech", selected[1].CompanyName)
}

func TestMerge_UpdatesByWebsite(t *testing.T) {
	table := sampleTable()
	require.NoError(t, table.Toggle(2))

	table.Merge(
		models.Lead{CompanyName: "Globex", WebsiteURL: "HTTPS://globex.com", Status: models.StatusDrafted},
		models.Lead{CompanyName: "Umbrella", WebsiteURL: "https://umbrella.co", Status: models.StatusPending},
		models.Lead{CompanyName: "NoSite", WebsiteURL: models.NotAvailable},
	)

	rows := table.Rows()
	require.Len(t, rows, 5)
	assert.Equal(t, models.StatusDrafted, rows[1].Status)
	assert.Equal(t, "Umbrella", rows[3].CompanyName)
	assert.Equal(t, "NoSite", rows[4].CompanyName)
	assert.Equal(t, []int{2}, table.Selected())
}

func TestReplace_ClearsSelection(t *testing.T) {
	table := sampleTable()
	table.SelectAll()

	table.Replace([]models.Lead{{CompanyName: "Only"}})

	assert.Equal(t, 1, table.Len())
	assert.Empty(t, table.Selected())
}

func TestRows_ReturnsCopy(t *testing.T) {
	table := sampleTable()
	rows := table.Rows()
	rows[0].CompanyName = "Mutated"

	assert.Equal(t, "Acme", table.Rows()[0].CompanyName)
}

func TestFilter_Matches(t *testing.T) {
	lead := models.Lead{CompanyName: "Acme Corp", WebsiteURL: "https://acme.io", Status: models.StatusDone}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"zero value", Filter{}, true},
		{"all statuses", Filter{Status: AllStatuses}, true},
		{"status match", Filter{Status: models.StatusDone}, true},
		{"status mismatch", Filter{Status: models.StatusPending}, false},
		{"company search is case insensitive", Filter{Query: "ACME"}, true},
		{"website search", Filter{Query: "acme.io"}, true},
		{"status search", Filter{Query: "done"}, true},
		{"no match", Filter{Query: "globex"}, false},
		{"status and query", Filter{Status: models.StatusDone, Query: "corp"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(lead))
		})
	}
}

func TestView_KeepsTableIndices(t *testing.T) {
	table := sampleTable()
	require.NoError(t, table.Toggle(2))

	rows := table.View(Filter{Query: "initech"})

	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Index)
	assert.True(t, rows[0].Selected)
}
