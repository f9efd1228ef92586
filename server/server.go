// Package server implements the SubscriptionEndpoint: the HTTP/WS
// front door dashboard clients connect to, per spec.md §4.7.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/arguslabs/argus/broadcast"
	"github.com/arguslabs/argus/obs"
	"github.com/arguslabs/argus/serialize"
)

// handshakeTimeout and writeTimeout implement spec.md §5's timeouts.
const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
)

// connectRate and connectBurst bound the /events upgrade rate, a
// defense against a reconnect storm overwhelming the accept loop.
const (
	connectRate  = 50 // new connections per second
	connectBurst = 100
)

// Endpoint is the SubscriptionEndpoint described in spec.md §4.7.
type Endpoint struct {
	bc            *broadcast.Broadcaster
	queueCapacity int
	metrics       *obs.Metrics
	log           *zap.Logger

	upgrader       websocket.Upgrader
	connectLimiter *rate.Limiter
	nextID         atomic.Uint64

	httpServer *http.Server
}

// New creates an Endpoint listening on addr (e.g. ":9202").
func New(addr string, bc *broadcast.Broadcaster, queueCapacity int, metrics *obs.Metrics, log *zap.Logger) *Endpoint {
	e := &Endpoint{
		bc:            bc,
		queueCapacity: queueCapacity,
		metrics:       metrics,
		log:           log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: handshakeTimeout,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		connectLimiter: rate.NewLimiter(connectRate, connectBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", e.handleEvents)
	mux.HandleFunc("/health", e.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/gc-analysis", e.handleGCAnalysis)
	mux.HandleFunc("/cpu-metrics", e.handleCPUMetrics)
	// Static dashboard assets are an external, optional concern
	// (spec.md §4.7); a caller embedding the dashboard can register its
	// own handler for "/" and "/public/" on the same mux before Start.

	e.httpServer = &http.Server{Addr: addr, Handler: mux}
	return e
}

// Mux exposes the underlying handler so an embedder can add the
// optional static-asset routes spec.md §4.7 leaves external.
func (e *Endpoint) Mux() *http.ServeMux {
	return e.httpServer.Handler.(*http.ServeMux)
}

// Start begins serving. It blocks until the listener stops; run it on
// its own goroutine and use Shutdown to stop it.
func (e *Endpoint) Start() error {
	if e.log != nil {
		e.log.Info("subscription endpoint listening", zap.String("addr", e.httpServer.Addr))
	}
	err := e.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting new connections and waits up to ctx's
// deadline for in-flight requests to finish.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	return e.httpServer.Shutdown(ctx)
}

func (e *Endpoint) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"up"}`))
}

func (e *Endpoint) handleGCAnalysis(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(serialize.GCAnalysis(e.bc.GCSnapshot()))
}

func (e *Endpoint) handleCPUMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(serialize.CPUMetrics(e.bc.CPUSnapshot()))
}

func (e *Endpoint) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !e.connectLimiter.Allow() {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if e.log != nil {
			e.log.Warn("websocket upgrade failed", zap.Error(err))
		}
		return
	}

	id := fmt.Sprintf("sub-%d", e.nextID.Add(1))
	sub := broadcast.NewSubscriber(id, e.queueCapacity, e.metrics)
	sub.SetPhase(broadcast.Replaying)

	e.bc.Subscribers().Add(sub)
	if e.metrics != nil {
		e.metrics.SubscribersActive.Inc()
	}

	done := make(chan struct{})
	go e.writePump(conn, sub, done)
	e.readPump(conn, sub)

	close(done)
	e.bc.Subscribers().Remove(sub.ID)
	sub.Close()
	if e.metrics != nil {
		e.metrics.SubscribersActive.Dec()
	}
	_ = conn.Close()
}

// writePump replays the recent-events buffer, then forwards every
// subsequent broadcast frame, until done is closed or a write fails.
func (e *Endpoint) writePump(conn *websocket.Conn, sub *broadcast.Subscriber, done <-chan struct{}) {
	for _, frame := range e.bc.RecentEvents().Snapshot() {
		if err := e.write(conn, frame); err != nil {
			sub.SetPhase(broadcast.Closed)
			return
		}
	}
	sub.SetPhase(broadcast.Live)

	for {
		select {
		case <-done:
			return
		case frame, ok := <-sub.Outbound():
			if !ok {
				return
			}
			if err := e.write(conn, frame); err != nil {
				sub.SetPhase(broadcast.Stalled)
				return
			}
		}
	}
}

func (e *Endpoint) write(conn *websocket.Conn, frame []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// readPump handles inbound command frames until the peer disconnects.
func (e *Endpoint) readPump(conn *websocket.Conn, sub *broadcast.Subscriber) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			sub.SetPhase(broadcast.Draining)
			return
		}

		cmd, err := serialize.ParseCommand(raw)
		if err != nil {
			continue
		}
		e.handleCommand(sub, cmd)
	}
}

func (e *Endpoint) handleCommand(sub *broadcast.Subscriber, cmd serialize.Command) {
	switch cmd.Name {
	case "get-thread-events":
		frames := e.bc.ThreadEvents(cmd.ThreadID)
		sub.Enqueue(serialize.ThreadEvents(cmd.ThreadID, frames))
	default:
		// Unknown and ping commands are silently ignored (spec.md §6/§4.7).
	}
}
