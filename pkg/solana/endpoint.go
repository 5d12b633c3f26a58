package solana

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrNoEndpoints = errors.New("no rpc endpoints configured")

// EndpointRotator hands out RPC endpoints in round-robin order. It is safe
// for concurrent use.
type EndpointRotator interface {
	Next() string
	Endpoints() []string
}

type roundRobin struct {
	mu        sync.Mutex
	endpoints []string
	next      int
}

// NewRoundRobin returns an EndpointRotator cycling through endpoints in the
// order provided.
func NewRoundRobin(endpoints ...string) (EndpointRotator, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	copied := make([]string, len(endpoints))
	copy(copied, endpoints)

	return &roundRobin{endpoints: copied}, nil
}

func (r *roundRobin) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	endpoint := r.endpoints[r.next]
	r.next = (r.next + 1) % len(r.endpoints)
	return endpoint
}

func (r *roundRobin) Endpoints() []string {
	copied := make([]string, len(r.endpoints))
	copy(copied, r.endpoints)
	return copied
}
