package surface

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/surface-tuio/tuio"
)

func newTestMonitor(t *testing.T) (*Monitor, *tuio.Dispatcher, *tuio.ManualClock) {
	t.Helper()
	clock := tuio.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	queues := tuio.NewQueues(16)
	store := tuio.NewStore(tuio.StoreConfig{Timeout: time.Second, Clock: clock})
	dispatcher := tuio.NewDispatcher(tuio.DispatcherConfig{Queues: queues})
	return NewMonitor(MonitorConfig{Store: store, Queues: queues}), dispatcher, clock
}

func TestMonitorCycle(t *testing.T) {
	monitor, dispatcher, clock := newTestMonitor(t)
	assert.Empty(t, monitor.Patterns())

	pattern := tuio.NewImagePattern(4, 2)
	pattern.Bounds = tuio.Bounds{X: 0.25, Y: 0.5, Angle: 90, Width: 0.5, Height: 0.25}
	pattern.Symbol = tuio.NewSymbol("card")
	for _, msg := range tuio.PatternMessages(pattern) {
		require.NoError(t, dispatcher.Dispatch(msg))
	}
	pen := tuio.NewPointer(9, tuio.PointerTypePen)
	pen.X, pen.Y = 0.5, 0.5
	pen.Data = tuio.DataList{{MimeType: "color", Payload: "0,0,255"}}
	for _, msg := range tuio.PointerMessages(pen) {
		require.NoError(t, dispatcher.Dispatch(msg))
	}

	log := monitor.Cycle()
	assert.Equal(t, []tuio.PatternKey{{SessionID: 4, UserID: 2}}, log.ChangedPatterns())
	require.Len(t, monitor.Patterns(), 1)
	view := monitor.Patterns()[0]
	assert.Equal(t, "4_2", view.Key)
	assert.Equal(t, "card", view.Symbol.UUID)
	assert.Equal(t, 0.25, view.Bounds.X)
	require.Len(t, monitor.Pointers(), 1)
	assert.Equal(t, []DataView{{MimeType: "color", Payload: "0,0,255"}}, monitor.Pointers()[0].Data)
	assert.Equal(t, "0,0,255", monitor.Pointers()[0].Color)

	clock.Advance(1500 * time.Millisecond)
	log = monitor.Cycle()
	assert.Equal(t, []tuio.PatternKey{{SessionID: 4, UserID: 2}}, log.EvictedPatterns)
	assert.Len(t, log.EvictedPointers, 1)
	assert.Empty(t, monitor.Patterns())
	assert.Empty(t, monitor.Pointers())
}

func TestMonitorSnapshotIsCopy(t *testing.T) {
	monitor, dispatcher, _ := newTestMonitor(t)
	pattern := tuio.NewImagePattern(1, 1)
	pattern.Bounds = tuio.Bounds{X: 0.1, Y: 0.1, Width: 0.1, Height: 0.1}
	pattern.Symbol = tuio.NewSymbol("a")
	for _, msg := range tuio.PatternMessages(pattern) {
		require.NoError(t, dispatcher.Dispatch(msg))
	}
	monitor.Cycle()
	views := monitor.Patterns()
	views[0].Key = "changed"
	assert.Equal(t, "1_1", monitor.Patterns()[0].Key)
}

func TestPointerViewColor(t *testing.T) {
	pen := tuio.NewPointer(1, tuio.PointerTypePen)
	pen.Data = tuio.DataList{{MimeType: ColorMimeType, Payload: " 256, 10,-1"}}
	assert.Equal(t, "0,10,255", NewPointerView(pen).Color)

	pen.Data = tuio.DataList{{MimeType: ColorMimeType, Payload: "blue"}}
	assert.Empty(t, NewPointerView(pen).Color)
	assert.Len(t, NewPointerView(pen).Data, 1)

	assert.Empty(t, NewPointerView(tuio.NewPointer(2, tuio.PointerTypePen)).Color)
}
