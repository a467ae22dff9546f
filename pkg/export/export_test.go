package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	table := Table{
		Title:   "Class Standings",
		Headers: []string{"Rank", "Class", "Stars"},
		Rows: [][]string{
			{"1", "3A", "180.00"},
			{"2", "3B"},
		},
	}

	payload, err := NewCSVExporter().Render(table)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, table.Headers, records[0])
	// Short rows are padded out to the header width.
	require.Equal(t, []string{"2", "3B", ""}, records[2])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	table := Table{
		Title:   "Student Standings",
		Headers: []string{"Rank", "Student", "Stars"},
		Rows:    [][]string{{"1", "Mina", "42.50"}},
	}

	payload, err := NewPDFExporter().Render(table)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}
