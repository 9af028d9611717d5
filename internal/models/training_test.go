package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelMapAssignIsDense(t *testing.T) {
	m := NewLabelMap("run-1", time.Now())

	assert.Equal(t, 0, m.Assign("10000001"))
	assert.Equal(t, 1, m.Assign("10000002"))
	assert.Equal(t, 2, m.Assign("10000003"))
	require.NoError(t, m.Validate())

	id, ok := m.StudentID(1)
	assert.True(t, ok)
	assert.Equal(t, "10000002", id)

	_, ok = m.StudentID(3)
	assert.False(t, ok)
}

func TestLabelMapValidate(t *testing.T) {
	gap := &LabelMap{Labels: map[int]string{0: "10000001", 2: "10000002"}}
	assert.ErrorContains(t, gap.Validate(), "label 1 missing")

	dup := &LabelMap{Labels: map[int]string{0: "10000001", 1: "10000001"}}
	assert.ErrorContains(t, dup.Validate(), "bound to labels 0 and 1")

	var missing *LabelMap
	assert.Error(t, missing.Validate())
	_, ok := missing.StudentID(0)
	assert.False(t, ok)
}
