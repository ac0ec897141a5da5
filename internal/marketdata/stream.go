package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// StreamConfig configures quote stream behavior.
type StreamConfig struct {
	// ReconnectDelay is initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default stream configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// streamRequest is the subscribe/unsubscribe frame.
type streamRequest struct {
	Action string `json:"action"`
	Params struct {
		Symbols string `json:"symbols"`
	} `json:"params"`
}

// streamEvent is any inbound frame; quotes carry event "price".
type streamEvent struct {
	Event string `json:"event"`
	Quote
}

// QuoteStream maintains a websocket subscription to live quotes and
// republishes them on a channel. The connection is re-established with
// exponential backoff and subscriptions are replayed after reconnect.
type QuoteStream struct {
	endpoint string
	config   StreamConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// symbols subscribed so far, for resubscription after reconnect
	symbols   map[string]struct{}
	symbolsMu sync.Mutex

	quotes chan Quote
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewQuoteStream connects to the endpoint and starts the read and ping
// loops. Quotes arrive on Quotes() until Close.
func NewQuoteStream(ctx context.Context, endpoint string, config *StreamConfig) (*QuoteStream, error) {
	cfg := DefaultStreamConfig()
	if config != nil {
		cfg = *config
	}

	s := &QuoteStream{
		endpoint: endpoint,
		config:   cfg,
		symbols:  make(map[string]struct{}),
		quotes:   make(chan Quote, 256),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Quotes returns the inbound quote channel. It is closed on Close.
func (s *QuoteStream) Quotes() <-chan Quote {
	return s.quotes
}

// Subscribe adds symbols to the stream.
func (s *QuoteStream) Subscribe(symbols ...string) error {
	if s.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	s.symbolsMu.Lock()
	for _, sym := range symbols {
		s.symbols[sym] = struct{}{}
	}
	s.symbolsMu.Unlock()

	return s.send("subscribe", symbols)
}

// Close shuts the stream down and closes the quote channel.
func (s *QuoteStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	close(s.quotes)
	return nil
}

func (s *QuoteStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	return nil
}

func (s *QuoteStream) send(action string, symbols []string) error {
	req := streamRequest{Action: action}
	req.Params.Symbols = strings.Join(symbols, ",")

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// ping writes a ping frame. The lock is held across the write so a
// ping never interleaves with send; the connection allows only one
// writer at a time.
func (s *QuoteStream) ping() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return nil
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// readLoop reads frames until shutdown, reconnecting on failure.
func (s *QuoteStream) readLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()
		if conn == nil {
			if !s.reconnect() {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			log.Printf("[marketdata] read error: %v, reconnecting", err)
			if !s.reconnect() {
				return
			}
			continue
		}

		var event streamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[marketdata] skipping malformed frame: %v", err)
			continue
		}
		if event.Event != "price" {
			continue
		}

		select {
		case s.quotes <- event.Quote:
		case <-s.done:
			return
		default:
			// Slow consumer: drop the oldest pending quote.
			select {
			case <-s.quotes:
			default:
			}
			select {
			case s.quotes <- event.Quote:
			default:
			}
		}
	}
}

// reconnect re-establishes the connection with exponential backoff and
// replays subscriptions. Returns false when the stream was closed.
func (s *QuoteStream) reconnect() bool {
	delay := s.config.ReconnectDelay

	for {
		select {
		case <-s.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := s.connect(ctx)
		cancel()
		if err == nil {
			s.symbolsMu.Lock()
			symbols := make([]string, 0, len(s.symbols))
			for sym := range s.symbols {
				symbols = append(symbols, sym)
			}
			s.symbolsMu.Unlock()

			if len(symbols) > 0 {
				if err := s.send("subscribe", symbols); err != nil {
					log.Printf("[marketdata] resubscribe failed: %v", err)
					continue
				}
			}
			log.Printf("[marketdata] reconnected, %d symbols resubscribed", len(symbols))
			return true
		}

		log.Printf("[marketdata] reconnect failed: %v", err)
		delay *= 2
		if delay > s.config.MaxReconnectDelay {
			delay = s.config.MaxReconnectDelay
		}
	}
}

// pingLoop sends ping frames to keep the connection alive.
func (s *QuoteStream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				log.Printf("[marketdata] ping failed: %v", err)
			}
		}
	}
}
