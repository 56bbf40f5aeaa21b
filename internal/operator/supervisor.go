// Package operator is the client side of the operator socket: it keeps a
// connection to the assistant's broadcast hub alive.
package operator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection state of a Supervisor.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

var (
	ErrMaxReconnectAttempts = errors.New("maximum reconnect attempts reached")
	ErrNotConnected         = errors.New("not connected")
)

type Config struct {
	URL         string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Dialer      *websocket.Dialer
	Logger      *slog.Logger
	// OnState, if set, is called on every state change from the
	// supervisor goroutine.
	OnState func(prev, next State)
}

func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Backoff returns min(base*2^attempt, ceiling).
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return ceiling
	}
	d := base << uint(attempt)
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}

// Supervisor dials the hub and redials with exponential backoff after an
// unexpected close. After MaxAttempts consecutive failures it reports
// ErrMaxReconnectAttempts and waits for Retry.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	attempt int
	conn    *websocket.Conn

	writeMu sync.Mutex

	events chan []byte
	errs   chan error
	retry  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Supervisor {
	cfg.setDefaults()
	return &Supervisor{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "operator", "url", cfg.URL),
		state:  StateDisconnected,
		events: make(chan []byte, 64),
		errs:   make(chan error, 1),
		retry:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Events delivers every frame received from the hub.
func (s *Supervisor) Events() <-chan []byte { return s.events }

// Errors delivers terminal errors such as ErrMaxReconnectAttempts.
func (s *Supervisor) Errors() <-chan error { return s.errs }

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts is the number of consecutive failed reconnects.
func (s *Supervisor) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// Start launches the supervisor goroutine.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Retry resets the attempt counter and reconnects immediately, dropping the
// current connection if there is one.
func (s *Supervisor) Retry() {
	select {
	case s.retry <- struct{}{}:
	default:
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Send writes v as JSON on the current connection.
func (s *Supervisor) Send(v any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close stops the supervisor and closes the connection.
func (s *Supervisor) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	<-s.done
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(StateDisconnected)

	for {
		s.setState(StateConnecting)
		conn, _, err := s.cfg.Dialer.DialContext(ctx, s.cfg.URL, nil)
		if err == nil {
			s.onOpen(conn)
			s.readLoop(ctx, conn)
			s.mu.Lock()
			s.conn = nil
			s.mu.Unlock()
		} else if ctx.Err() == nil {
			s.logger.Warn("dial failed", "error", err)
		}
		if ctx.Err() != nil {
			return
		}
		s.setState(StateDisconnected)

		select {
		case <-s.retry:
			s.manualRetry()
			continue
		default:
		}

		attempt := s.Attempts()
		if attempt >= s.cfg.MaxAttempts {
			s.logger.Error("giving up reconnecting", "attempts", attempt)
			s.report(ErrMaxReconnectAttempts)
			select {
			case <-s.retry:
				s.manualRetry()
				continue
			case <-ctx.Done():
				return
			}
		}

		delay := Backoff(attempt, s.cfg.BaseDelay, s.cfg.MaxDelay)
		s.mu.Lock()
		s.attempt++
		s.mu.Unlock()
		s.logger.Info("reconnecting", "attempt", attempt+1, "delay", delay.String())

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-s.retry:
			timer.Stop()
			s.manualRetry()
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Supervisor) onOpen(conn *websocket.Conn) {
	// A Retry issued before this connection existed has been served by it.
	select {
	case <-s.retry:
	default:
	}
	s.mu.Lock()
	s.conn = conn
	s.attempt = 0
	s.mu.Unlock()
	s.setState(StateConnected)
	s.logger.Info("connected")
}

func (s *Supervisor) manualRetry() {
	s.mu.Lock()
	s.attempt = 0
	s.mu.Unlock()
	s.setState(StateReconnecting)
}

func (s *Supervisor) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("connection closed", "error", err)
			}
			return
		}
		select {
		case s.events <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Supervisor) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next && s.cfg.OnState != nil {
		s.cfg.OnState(prev, next)
	}
}
