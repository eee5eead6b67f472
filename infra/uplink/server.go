package uplink

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/cellmon/infra/logger"
)

// timeNow is swapped out in tests to exercise the throttling window.
var timeNow = time.Now

// ServerConfig defines the mock endpoint parameters.
type ServerConfig struct {
	Address string `json:"address"`
	// MinIntervalSeconds is the minimum time between accepted writes.
	MinIntervalSeconds int `json:"min_interval_seconds"`
	// MaxRows caps the number of stored records.
	MaxRows int `json:"max_rows"`
}

// SetDefaults applies the reference endpoint limits.
func (c *ServerConfig) SetDefaults() {
	if c.MinIntervalSeconds <= 0 {
		c.MinIntervalSeconds = 20
	}
	if c.MaxRows <= 0 {
		c.MaxRows = 1000
	}
}

// Row is one accepted write.
type Row struct {
	Fields [6]string
	Time   time.Time
}

// ServerMock is a reference implementation of the remote logging endpoint,
// used in tests and local runs. It enforces a minimum inter-write interval
// and a maximum row count, rejecting writes with a plain-text message rather
// than a structured error code.
type ServerMock struct {
	addr string
	cfg  ServerConfig
	log  logger.Logger
	srv  *http.Server

	mu        sync.Mutex
	rows      []Row
	lastWrite time.Time

	accepted prometheus.Counter
	rejected *prometheus.CounterVec
}

// NewServerMock creates a mock endpoint using the default Prometheus
// registerer.
func NewServerMock(cfg ServerConfig) *ServerMock {
	return NewServerMockWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewServerMockWithRegistry creates a mock endpoint and registers its
// counters on the provided registerer. If reg is nil the default registerer
// is used.
func NewServerMockWithRegistry(cfg ServerConfig, reg prometheus.Registerer) *ServerMock {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cfg.SetDefaults()
	log := logger.New("uplink-server")

	accepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uplink_writes_accepted_total",
		Help: "Accepted uplink writes",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uplink_writes_rejected_total",
		Help: "Rejected uplink writes by reason",
	}, []string{"reason"})

	if err := reg.Register(accepted); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if exist, ok := are.ExistingCollector.(prometheus.Counter); ok {
				accepted = exist
			}
		}
	}
	if err := reg.Register(rejected); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if exist, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				rejected = exist
			}
		}
	}

	return &ServerMock{
		addr:     cfg.Address,
		cfg:      cfg,
		log:      log,
		accepted: accepted,
		rejected: rejected,
	}
}

// Handler returns the endpoint's HTTP handler, exposed for httptest use.
func (s *ServerMock) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("pong")); err != nil {
			s.log.Errorf("write pong: %v", err)
		}
	})
	mux.HandleFunc("/update", s.handleUpdate)
	return mux
}

func (s *ServerMock) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	var row Row
	for i := 0; i < 6; i++ {
		row.Fields[i] = q.Get(fmt.Sprintf("field%d", i+1))
	}
	row.Time = timeNow()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastWrite.IsZero() && row.Time.Sub(s.lastWrite) < time.Duration(s.cfg.MinIntervalSeconds)*time.Second {
		s.rejected.WithLabelValues("throttled").Inc()
		s.reply(w, fmt.Sprintf("rejected: wait %d seconds between writes", s.cfg.MinIntervalSeconds))
		return
	}
	if len(s.rows) >= s.cfg.MaxRows {
		s.rejected.WithLabelValues("full").Inc()
		s.reply(w, fmt.Sprintf("rejected: row limit %d reached", s.cfg.MaxRows))
		return
	}
	s.rows = append(s.rows, row)
	s.lastWrite = row.Time
	s.accepted.Inc()
	s.reply(w, fmt.Sprintf("ok %d", len(s.rows)))
}

// reply writes a plain-text body with a 200 status; the protocol carries the
// outcome in the body, not the status code.
func (s *ServerMock) reply(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(msg)); err != nil {
		s.log.Errorf("write reply: %v", err)
	}
}

// Rows returns a copy of the accepted writes.
func (s *ServerMock) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Addr returns the listening address once Start has been called.
func (s *ServerMock) Addr() string { return s.addr }

// Start runs the HTTP server until the context is canceled.
func (s *ServerMock) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("shutdown server: %v", err)
		}
	}()
	s.log.Infof("uplink mock server listening on %s", s.addr)
	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
