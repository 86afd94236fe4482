package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterDataset() Dataset {
	return Dataset{
		Title:   "CS101 roster",
		Headers: []string{"student_id", "credits"},
		Rows: []map[string]string{
			{"student_id": "stu-1", "credits": "3"},
			{"student_id": "stu-2, jr", "credits": "3"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)

	format, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, format)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVExporterRender(t *testing.T) {
	body, err := NewCSVExporter().Render(rosterDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "student_id,credits", lines[0])
	assert.Equal(t, `"stu-2, jr",3`, lines[2])
}

func TestPDFExporterRender(t *testing.T) {
	body, err := NewPDFExporter().Render(rosterDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = RendererFor(FormatPDF).Render(Dataset{})
	assert.Error(t, err)
}
