package server

import (
	"fmt"
	"net"
	"net/http"

	"github.com/ValentinKolb/dRender/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/puzpuzpuz/xsync/v3"
)

// serverMetrics are the counters of one server. Every server has its own set, the
// endpoint also exposes the process metrics of the default set.
type serverMetrics struct {
	set        *metrics.Set
	messages   *xsync.MapOf[common.MessageType, *metrics.Counter]
	channels   *xsync.MapOf[string, *metrics.Counter]
	dropped    *metrics.Counter
	replyBytes *metrics.Counter
}

func newServerMetrics() *serverMetrics {
	set := metrics.NewSet()
	return &serverMetrics{
		set:        set,
		messages:   xsync.NewMapOf[common.MessageType, *metrics.Counter](),
		channels:   xsync.NewMapOf[string, *metrics.Counter](),
		dropped:    set.NewCounter("drender_messages_dropped_total"),
		replyBytes: set.NewCounter("drender_reply_bytes_total"),
	}
}

// message counts an inbound message
func (m *serverMetrics) message(t common.MessageType) {
	c, _ := m.messages.LoadOrCompute(t, func() *metrics.Counter {
		return m.set.GetOrCreateCounter(fmt.Sprintf(`drender_messages_total{type=%q}`, t.String()))
	})
	c.Inc()
}

// channel counts the payload bytes of a sent frame channel per codec ("raw" if uncompressed)
func (m *serverMetrics) channel(codec string, n int) {
	c, _ := m.channels.LoadOrCompute(codec, func() *metrics.Counter {
		return m.set.GetOrCreateCounter(fmt.Sprintf(`drender_channel_bytes_total{codec=%q}`, codec))
	})
	c.Add(n)
}

// handler serves the metrics in Prometheus text format
func (m *serverMetrics) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		m.set.WritePrometheus(w)
		metrics.WritePrometheus(w, true)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

// startMetrics serves the metrics endpoint in the background
func (s *Server) startMetrics() error {
	ln, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen on metrics endpoint: %w", err)
	}

	s.metricsSrv = &http.Server{Handler: s.metrics.handler()}
	go func() {
		if err := s.metricsSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			Logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()

	Logger.Infof("Serving metrics on http://%s/metrics", ln.Addr())
	return nil
}
