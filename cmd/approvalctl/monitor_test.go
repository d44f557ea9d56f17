package main

import (
	"bytes"
	"testing"
	"time"

	"approvalflow/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOverdue(t *testing.T) {
	var buf bytes.Buffer
	id := uuid.MustParse("6f1c2d1e-8a57-4c1b-9a51-2f7d3c0e9b10")
	err := writeOverdue(&buf, []model.OverdueItem{{
		RequestID:    id,
		RequestTitle: "Release 4.2",
		Level:        2,
		ApproverID:   id,
		TimeoutHours: 4,
		WaitingHours: 6.5,
		Overdue:      true,
		WaitingSince: time.Now(),
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "WAITING(h)")
	assert.Contains(t, out, "Release 4.2")
	assert.Contains(t, out, "6.50")
}

func TestWriteBottlenecks(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeBottlenecks(&buf, []model.BottleneckStat{{Level: 1, LevelName: "Level 1", Count: 3, AverageWaitHours: 2.25}}))
	assert.Contains(t, buf.String(), "Level 1")
	assert.Contains(t, buf.String(), "2.25")
}

func TestPrintJSONOnlyWhenRequested(t *testing.T) {
	var buf bytes.Buffer
	outputFormat = "text"
	done, err := printJSON(&buf, map[string]int{"a": 1})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, buf.String())

	outputFormat = "json"
	defer func() { outputFormat = "text" }()
	done, err = printJSON(&buf, map[string]int{"a": 1})
	require.NoError(t, err)
	assert.True(t, done)
	assert.JSONEq(t, `{"a":1}`, buf.String())
}
