package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attendanceDataset() Dataset {
	return Dataset{
		Headers: []string{"student_id", "name", "method"},
		Rows: []map[string]string{
			{"student_id": "10000001", "name": "Ada, Countess", "method": "FACE"},
			{"student_id": "10000002", "method": "QR"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(attendanceDataset())
	require.NoError(t, err)
	assert.Equal(t, "student_id,name,method\n10000001,\"Ada, Countess\",FACE\n10000002,,QR\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(attendanceDataset(), "Attendance", "2024-01-01")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	data := attendanceDataset()
	data.Widths = []float64{10}
	_, err = NewPDFExporter().Render(data, "", "")
	assert.Error(t, err)
}
