// Package app hosts the forthcoming service facade, the game host bridge and
// the process runtime.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/forthcoming/forthcoming/internal/platform/timeouts"
	"github.com/forthcoming/forthcoming/internal/services/forthcoming/domain"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
	hostOutboundQueue      = 256
)

// Config controls the host bridge HTTP server.
type Config struct {
	HTTPAddr          string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server serves the host bridge and the operator endpoints.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	service         *Service
}

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type helloPayload struct {
	ConnectionID string `json:"connection_id"`
	ServerTime   string `json:"server_time"`
}

type actorJoinedPayload struct {
	ActorID domain.ActorID `json:"actor_id"`
	Locale  string         `json:"locale,omitempty"`
}

type actorLeftPayload struct {
	ActorID domain.ActorID `json:"actor_id"`
}

type companionStruckPayload struct {
	AttackerID         domain.ActorID `json:"attacker_id"`
	AttackerIsActor    bool           `json:"attacker_is_actor"`
	CompanionTamed     bool           `json:"companion_tamed"`
	CompanionOwnerID   domain.ActorID `json:"companion_owner_id"`
	CompanionOwnerName string         `json:"companion_owner_name"`
	CompanionName      string         `json:"companion_name"`
	Damage             float64        `json:"damage"`
	CompanionHealth    float64        `json:"companion_health"`
}

type actorRespawnedPayload struct {
	ActorID  domain.ActorID  `json:"actor_id"`
	Location domain.Location `json:"location"`
}

type relocatePayload struct {
	ActorID  domain.ActorID  `json:"actor_id"`
	Relocate bool            `json:"relocate"`
	Location domain.Location `json:"location"`
}

type actorDamagedPayload struct {
	ActorID domain.ActorID `json:"actor_id"`
	Health  float64        `json:"health"`
	Damage  float64        `json:"damage"`
}

type damageClampedPayload struct {
	ActorID domain.ActorID `json:"actor_id"`
	Damage  float64        `json:"damage"`
}

type ackEnvelope struct {
	Result ackResult `json:"result"`
}

type ackResult struct {
	Status    string `json:"status"`
	Triggered *bool  `json:"triggered,omitempty"`
}

type titlePayload struct {
	ActorID domain.ActorID `json:"actor_id"`
	Title   domain.Title   `json:"title"`
}

type soundPayload struct {
	ActorID domain.ActorID `json:"actor_id"`
	Sound   domain.Sound   `json:"sound"`
}

type chatPayload struct {
	ActorID domain.ActorID `json:"actor_id"`
	Text    string         `json:"text"`
}

type itemPayload struct {
	ActorID domain.ActorID    `json:"actor_id"`
	Item    domain.RecordItem `json:"item"`
}

type effectsPayload struct {
	ActorID domain.ActorID  `json:"actor_id"`
	Effects []domain.Effect `json:"effects"`
}

type healthPayload struct {
	ActorID domain.ActorID `json:"actor_id"`
	Health  float64        `json:"health"`
}

type ledgerResponse struct {
	ActorID domain.ActorID    `json:"actor_id"`
	Entries domain.Tally      `json:"entries"`
	Total   int               `json:"total"`
	Record  domain.RecordItem `json:"record"`
}

// wsPeer is one host connection. Command frames go through a bounded queue
// drained by a writer goroutine, so a slow host never stalls the tick clock.
type wsPeer struct {
	mu      sync.Mutex
	id      string
	conn    *websocket.Conn
	encoder *json.Encoder

	queueMu  sync.Mutex
	closed   bool
	outbound chan wsFrame
	done     chan struct{}
	pending  sync.WaitGroup
}

func newWSPeer(id string, conn *websocket.Conn) *wsPeer {
	return newQueuedPeer(id, conn, conn)
}

func newQueuedPeer(id string, conn *websocket.Conn, w io.Writer) *wsPeer {
	p := &wsPeer{
		id:       id,
		conn:     conn,
		encoder:  json.NewEncoder(w),
		outbound: make(chan wsFrame, hostOutboundQueue),
		done:     make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(timeouts.HostWrite))
	}
	return p.encoder.Encode(frame)
}

// enqueue hands frame to the writer without blocking. A full queue drops the
// frame.
func (p *wsPeer) enqueue(frame wsFrame) error {
	p.queueMu.Lock()
	defer p.queueMu.Unlock()
	if p.closed {
		return errHostUnavailable
	}
	p.pending.Add(1)
	select {
	case p.outbound <- frame:
		return nil
	default:
		p.pending.Done()
		return errHostBackpressure
	}
}

func (p *wsPeer) writeLoop() {
	for {
		select {
		case <-p.done:
			for {
				select {
				case <-p.outbound:
					p.pending.Done()
				default:
					return
				}
			}
		case frame := <-p.outbound:
			if err := p.writeFrame(frame); err != nil {
				log.Printf("forthcoming: write %s to host %s: %v", frame.Type, p.id, err)
			}
			p.pending.Done()
		}
	}
}

// flush waits until every queued frame has been written or dropped.
func (p *wsPeer) flush() {
	p.pending.Wait()
}

func (p *wsPeer) close() {
	if p == nil {
		return
	}
	p.queueMu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	p.queueMu.Unlock()
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// NewServer builds the bridge server for service.
func NewServer(config Config, service *Service) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if service == nil {
		return nil, errors.New("service is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           NewHandler(service),
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		service: service,
	}, nil
}

// ListenAndServe listens on the configured address and serves until ctx
// ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("forthcoming server is nil")
	}
	listener, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpAddr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s == nil {
		return errors.New("forthcoming server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("forthcoming bridge listening on %s", listener.Addr())
	go func() {
		serveErr <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		// Shutdown does not track hijacked websocket connections.
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), s.shutdownTimeout)
		drainErr := s.service.drainConns(drainCtx)
		cancelDrain()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return drainErr
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases the HTTP listener immediately.
func (s *Server) Close() {
	if s == nil || s.httpServer == nil {
		return
	}
	if err := s.httpServer.Close(); err != nil {
		log.Printf("close forthcoming http server: %v", err)
	}
	s.service.disconnectHost()
}
