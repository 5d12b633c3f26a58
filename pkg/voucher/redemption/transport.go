package redemption

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrTransportClosed = errors.New("transport closed")
)

// Transport is a bidirectional text message channel between a holder and an
// issuer.
type Transport interface {
	Send(ctx context.Context, msg string) error
	Receive(ctx context.Context) (string, error)
	Close() error
}

// Dialer connects to the peer that published a handoff.
type Dialer func(ctx context.Context, peerId string) (Transport, error)

type pipeEnd struct {
	in  <-chan string
	out chan<- string

	closeOnce *sync.Once
	closed    chan struct{}
}

// NewPipe returns two connected in-memory transports. Closing either end
// closes both.
func NewPipe() (Transport, Transport) {
	a := make(chan string, 16)
	b := make(chan string, 16)
	closeOnce := &sync.Once{}
	closed := make(chan struct{})

	return &pipeEnd{in: a, out: b, closeOnce: closeOnce, closed: closed},
		&pipeEnd{in: b, out: a, closeOnce: closeOnce, closed: closed}
}

func (p *pipeEnd) Send(ctx context.Context, msg string) error {
	select {
	case <-p.closed:
		return ErrTransportClosed
	default:
	}

	select {
	case p.out <- msg:
		return nil
	case <-p.closed:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Receive(ctx context.Context) (string, error) {
	// Drain what was sent before a close
	select {
	case msg := <-p.in:
		return msg, nil
	default:
	}

	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.closed:
		return "", ErrTransportClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	return nil
}
