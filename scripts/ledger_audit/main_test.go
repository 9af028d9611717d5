package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smart-attendance/internal/models"
)

type staticLedger []models.AttendanceRecord

func (l staticLedger) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	out := make([]models.AttendanceRecord, 0, len(l))
	for _, r := range l {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestAuditFindsDuplicates(t *testing.T) {
	ledger := staticLedger{
		{StudentID: "10000001", Date: "2024-01-01"},
		{StudentID: "10000001", Date: "2024-01-01"},
		{StudentID: "10000002", Date: "2024-01-01"},
		{StudentID: "10000001", Date: "2024-01-02"},
	}

	report, err := audit(context.Background(), "csv", ledger, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.Records)
	assert.Len(t, report.Keys, 3)
	assert.Equal(t, []markKey{{StudentID: "10000001", Date: "2024-01-01"}}, report.Duplicates)

	day, err := audit(context.Background(), "csv", ledger, models.AttendanceFilter{Date: "2024-01-02"})
	require.NoError(t, err)
	assert.Empty(t, day.Duplicates)
}

func TestDiffKeys(t *testing.T) {
	a := map[markKey]int{{"1", "d1"}: 1, {"2", "d1"}: 1}
	b := map[markKey]int{{"2", "d1"}: 2, {"3", "d2"}: 1}

	onlyA, onlyB := diffKeys(a, b)
	assert.Equal(t, []markKey{{"1", "d1"}}, onlyA)
	assert.Equal(t, []markKey{{"3", "d2"}}, onlyB)
}
