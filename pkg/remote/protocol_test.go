package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pureportal/voxara/pkg/voxara/engine"
)

func TestSessionEventMapsScanEvents(t *testing.T) {
	summary := json.RawMessage(`{"root":{"path":"/data","name":"data","sizeBytes":42,"fileCount":1,"dirCount":0,"files":[],"children":[]},"totalBytes":42,"fileCount":1,"dirCount":0,"largestFiles":[],"durationMs":7}`)

	tests := []struct {
		name string
		resp Response
		kind engine.Kind
	}{
		{"progress", Response{Event: EventScanProgress, ID: "s1", Data: summary}, engine.EventProgress},
		{"complete", Response{Event: EventScanComplete, ID: "s1", Data: summary}, engine.EventComplete},
		{"error", Response{Event: EventScanError, ID: "s1", Message: "boom"}, engine.EventError},
		{"cancelled", Response{Event: EventScanCancelled, ID: "s1"}, engine.EventCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := tt.resp.SessionEvent()
			require.True(t, ok)
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, "s1", ev.SessionID)
		})
	}
}

func TestSessionEventCarriesSummary(t *testing.T) {
	resp := Response{
		Event: EventScanProgress,
		ID:    "s1",
		Data:  json.RawMessage(`{"root":null,"totalBytes":1024,"fileCount":3,"dirCount":1,"largestFiles":[],"durationMs":12}`),
	}

	ev, ok := resp.SessionEvent()
	require.True(t, ok)
	require.NotNil(t, ev.Summary)
	assert.Equal(t, int64(1024), ev.Summary.TotalBytes)
	assert.Equal(t, int64(3), ev.Summary.FileCount)
}

func TestSessionEventRejectsNonScanAndMalformed(t *testing.T) {
	// Request-scoped responses belong to the correlator, not the session.
	for _, event := range []string{EventPong, EventListComplete, EventDiskInfo, EventCancelRequested, EventError} {
		_, ok := Response{Event: event, ID: "s1"}.SessionEvent()
		assert.False(t, ok, event)
	}

	// A scan event with an undecodable payload never reaches the session
	// state machine.
	_, ok := Response{Event: EventScanProgress, ID: "s1", Data: json.RawMessage(`{broken`)}.SessionEvent()
	assert.False(t, ok)
}
