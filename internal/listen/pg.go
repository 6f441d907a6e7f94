package listen

import (
	"context"
	"fmt"
	"sync"

	"github.com/arlobright/signalbox/internal/db"
	"github.com/arlobright/signalbox/internal/fault"
	"github.com/jackc/pgx/v5"
)

// PGStream subscribes to Postgres LISTEN/NOTIFY on the event channel.
type PGStream struct {
	dsn string

	mu   sync.Mutex
	conn *pgx.Conn
}

// NewPGStream creates a stream for the given store options. The
// connection is not opened until Connect.
func NewPGStream(opts db.Options) *PGStream {
	return &PGStream{dsn: opts.DSN()}
}

func (s *PGStream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.conn.Close(ctx)
		s.conn = nil
	}
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return fmt.Errorf("listen: connect: %v: %w", err, fault.ErrTransientStore)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+db.EventChannel); err != nil {
		conn.Close(ctx)
		return fmt.Errorf("listen: LISTEN %s: %w", db.EventChannel, err)
	}
	s.conn = conn
	return nil
}

func (s *PGStream) Wait(ctx context.Context) (Event, error) {
	conn := s.current()
	if conn == nil {
		return Event{}, fmt.Errorf("listen: not connected")
	}
	n, err := conn.WaitForNotification(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("listen: wait: %w", err)
	}
	return Event{Channel: n.Channel, Payload: n.Payload}, nil
}

func (s *PGStream) Ping(ctx context.Context) error {
	conn := s.current()
	if conn == nil {
		return fmt.Errorf("listen: not connected")
	}
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("listen: ping: %w", err)
	}
	return nil
}

func (s *PGStream) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	if err != nil {
		return fmt.Errorf("listen: close: %w", err)
	}
	return nil
}

func (s *PGStream) current() *pgx.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}
