package redemption

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
)

var (
	ErrUnexpectedMessage = errors.New("unexpected message type")
)

type websocketTransport struct {
	conn *websocket.Conn
}

// DialRelay joins the relay room named by peerId. The relay pairs the first
// two connections of a room and forwards text frames between them.
func DialRelay(ctx context.Context, relayURL, peerId string) (Transport, error) {
	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid relay url")
	}
	u.Path = path.Join("/", u.Path, url.PathEscape(peerId))

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "error dialing relay")
	}
	return &websocketTransport{conn: conn}, nil
}

// RelayDialer returns a Dialer bound to relayURL.
func RelayDialer(relayURL string) Dialer {
	return func(ctx context.Context, peerId string) (Transport, error) {
		return DialRelay(ctx, relayURL, peerId)
	}
}

func (t *websocketTransport) Send(ctx context.Context, msg string) error {
	return t.conn.Write(ctx, websocket.MessageText, []byte(msg))
}

func (t *websocketTransport) Receive(ctx context.Context) (string, error) {
	typ, data, err := t.conn.Read(ctx)
	if websocket.CloseStatus(err) != -1 {
		return "", ErrTransportClosed
	} else if err != nil {
		return "", err
	}

	if typ != websocket.MessageText {
		return "", ErrUnexpectedMessage
	}
	return string(data), nil
}

func (t *websocketTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "session complete")
}

type pendingPeer struct {
	conn *websocket.Conn
	done chan struct{}
}

// Relay is a minimal signaling server. Each path is a room that holds at most
// two peers.
type Relay struct {
	log *logrus.Entry

	mu      sync.Mutex
	pending map[string]*pendingPeer
}

func NewRelay() *Relay {
	return &Relay{
		log:     logrus.StandardLogger().WithField("type", "voucher/redemption/relay"),
		pending: make(map[string]*pendingPeer),
	}
}

func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	room := strings.Trim(req.URL.Path, "/")
	if len(room) == 0 {
		http.NotFound(w, req)
		return
	}

	log := r.log.WithField("room", room)

	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		log.WithError(err).Debug("failure accepting connection")
		return
	}

	r.mu.Lock()
	peer, ok := r.pending[room]
	if !ok {
		peer = &pendingPeer{conn: conn, done: make(chan struct{})}
		r.pending[room] = peer
		r.mu.Unlock()

		select {
		case <-peer.done:
		case <-req.Context().Done():
			r.mu.Lock()
			taken := r.pending[room] != peer
			if !taken {
				delete(r.pending, room)
			}
			r.mu.Unlock()

			if taken {
				<-peer.done
				return
			}
			conn.Close(websocket.StatusGoingAway, "relay shutting down")
		}
		return
	}
	delete(r.pending, room)
	r.mu.Unlock()

	defer close(peer.done)

	log.Debug("peers paired")
	r.bridge(req.Context(), peer.conn, conn)
}

func (r *Relay) bridge(ctx context.Context, a, b *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	forward := func(src, dst *websocket.Conn) {
		defer cancel()
		for {
			typ, data, err := src.Read(ctx)
			if err != nil {
				return
			}
			if err := dst.Write(ctx, typ, data); err != nil {
				return
			}
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		forward(a, b)
	}()
	go func() {
		defer wg.Done()
		forward(b, a)
	}()
	wg.Wait()

	a.Close(websocket.StatusNormalClosure, "peer disconnected")
	b.Close(websocket.StatusNormalClosure, "peer disconnected")
}
