package ports

import "github.com/toxikmusic/traxx-current-sub001/internal/core/domain"

// Metrics is the instrumentation seam the core services emit through; the
// Prometheus collector implements it.
type Metrics interface {
	RoomOpened()
	RoomClosed()
	ViewerCount(streamID domain.StreamID, count int)
	ChatFanout(recipients int)
	SegmentIngested(bytes int64)
	MirrorFailure()
	RecordingsSwept(count int)
}

// NopMetrics discards all observations; used in tests.
type NopMetrics struct{}

func (NopMetrics) RoomOpened()                      {}
func (NopMetrics) RoomClosed()                      {}
func (NopMetrics) ViewerCount(domain.StreamID, int) {}
func (NopMetrics) ChatFanout(int)                   {}
func (NopMetrics) SegmentIngested(int64)            {}
func (NopMetrics) MirrorFailure()                   {}
func (NopMetrics) RecordingsSwept(int)              {}
