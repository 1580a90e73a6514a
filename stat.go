package mqtt

import (
	"context"
	"log"
	"net/http"

	"github.com/golang-io/requests"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stat holds a Client's counters. A zero Stat has nil collectors and
// is not usable; every Client gets its Stat from newStat, which
// populates every field, so a Client never carries nil prometheus
// collectors. It is only wired into a /metrics
// endpoint when the embedding application calls Register/Httpd; the
// engine itself never depends on prometheus being scraped.
type Stat struct {
	PacketsSent     prometheus.Counter
	BytesSent       prometheus.Counter
	PacketsReceived prometheus.Counter
	BytesReceived   prometheus.Counter
	Reconnects      prometheus.Counter
	PingRoundTrips  prometheus.Histogram
	PublishByQoS    *prometheus.CounterVec
}

func newStat(clientID string) *Stat {
	labels := prometheus.Labels{"client_id": clientID}
	return &Stat{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_packets_sent_total", Help: "Control packets written to the transport.", ConstLabels: labels,
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_bytes_sent_total", Help: "Bytes written to the transport.", ConstLabels: labels,
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_packets_received_total", Help: "Control packets read from the transport.", ConstLabels: labels,
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_bytes_received_total", Help: "Bytes read from the transport.", ConstLabels: labels,
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_client_reconnects_total", Help: "Successful Connect calls after the first.", ConstLabels: labels,
		}),
		PingRoundTrips: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "mqtt_client_ping_round_trip_seconds", Help: "Time between sending PINGREQ and receiving PINGRESP.",
			Buckets: prometheus.DefBuckets, ConstLabels: labels,
		}),
		PublishByQoS: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_client_publish_total", Help: "Published messages by QoS level.", ConstLabels: labels,
		}, []string{"qos"}),
	}
}

// Register adds s's collectors to the default prometheus registry. Not
// called automatically: an embedded deployment that never scrapes
// metrics shouldn't pay for registration.
func (s *Stat) Register() {
	prometheus.MustRegister(s.PacketsSent, s.BytesSent, s.PacketsReceived, s.BytesReceived,
		s.Reconnects, s.PingRoundTrips, s.PublishByQoS)
}

// Httpd serves /metrics on addr using the same tiny server helper the
// reference broker uses. It blocks; callers typically run it in a
// goroutine from a cmd/ binary, never from the engine itself.
func Httpd(addr string) error {
	mux := requests.NewServeMux(requests.URL(addr))
	mux.Route("/metrics", promhttp.Handler())
	s := requests.NewServer(context.Background(), mux, requests.OnStart(func(srv *http.Server) {
		log.Printf("[METRICS_LISTEN] addr=%s", srv.Addr)
	}))
	return s.ListenAndServe()
}
