package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/toxikmusic/traxx-current-sub001/internal/core/domain"
)

// PrometheusCollector implements ports.Metrics.
type PrometheusCollector struct {
	roomsActive      prometheus.Gauge
	roomsOpenedTotal prometheus.Counter

	streamViewers *prometheus.GaugeVec

	chatMessagesTotal prometheus.Counter
	chatFanout        prometheus.Histogram

	segmentsIngestedTotal prometheus.Counter
	segmentBytesTotal     prometheus.Counter

	mirrorFailuresTotal  prometheus.Counter
	recordingsSweptTotal prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "traxx_rooms_active",
			Help: "Number of live signaling rooms",
		}),

		roomsOpenedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traxx_rooms_opened_total",
			Help: "Total number of rooms opened",
		}),

		streamViewers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "traxx_stream_viewers",
			Help: "Current viewer count per stream",
		}, []string{"stream_id"}),

		chatMessagesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traxx_chat_messages_total",
			Help: "Total chat messages fanned out",
		}),

		chatFanout: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "traxx_chat_fanout_recipients",
			Help:    "Recipients per chat message",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		segmentsIngestedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traxx_segments_ingested_total",
			Help: "Total media segments ingested",
		}),

		segmentBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traxx_segment_bytes_total",
			Help: "Total media segment bytes ingested",
		}),

		mirrorFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traxx_mirror_write_failures_total",
			Help: "Object-storage mirror writes that failed and were swallowed",
		}),

		recordingsSweptTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traxx_recordings_swept_total",
			Help: "Expired temporary recordings removed by the sweeper",
		}),
	}
}

func (p *PrometheusCollector) RoomOpened() {
	p.roomsActive.Inc()
	p.roomsOpenedTotal.Inc()
}

func (p *PrometheusCollector) RoomClosed() {
	p.roomsActive.Dec()
}

func (p *PrometheusCollector) ViewerCount(streamID domain.StreamID, count int) {
	p.streamViewers.WithLabelValues(streamID.String()).Set(float64(count))
}

func (p *PrometheusCollector) ChatFanout(recipients int) {
	p.chatMessagesTotal.Inc()
	p.chatFanout.Observe(float64(recipients))
}

func (p *PrometheusCollector) SegmentIngested(bytes int64) {
	p.segmentsIngestedTotal.Inc()
	p.segmentBytesTotal.Add(float64(bytes))
}

func (p *PrometheusCollector) MirrorFailure() {
	p.mirrorFailuresTotal.Inc()
}

func (p *PrometheusCollector) RecordingsSwept(count int) {
	p.recordingsSweptTotal.Add(float64(count))
}
