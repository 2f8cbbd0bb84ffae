package jsonrpc

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"nhooyr.io/websocket"
)

var wsConnID atomic.Uint64

// WS serves the same rpc server over a websocket; one goroutine per
// socket, writes serialized so notifications interleave safely with
// responses.
type WS struct {
	rpc *Server
	log utils.Logger
}

func NewWS(rpc *Server, log utils.Logger) *WS {
	return &WS{rpc: rpc, log: log}
}

type wsConn struct {
	id     uint64
	conn   *websocket.Conn
	ctx    context.Context
	closed chan struct{}
	mu     sync.Mutex
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.Write(c.ctx, websocket.MessageText, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) ID() uint64 {
	return c.id
}

func (c *wsConn) Closed() <-chan struct{} {
	return c.closed
}

func (ws *WS) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // devnet: any origin may connect
	})
	if err != nil {
		ws.log.Warnw("Failed to accept websocket connection", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(req.Context())
	wrapped := &wsConn{
		id:     wsConnID.Add(1),
		conn:   conn,
		ctx:    ctx,
		closed: make(chan struct{}),
	}
	defer func() {
		cancel()
		close(wrapped.closed)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	connCtx := ContextWithConn(ctx, wrapped)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Socket gone; its subscriptions are dropped by the hub.
			return
		}

		resp, err := ws.rpc.Handle(connCtx, data)
		if err != nil {
			ws.log.Errorw("Failed to handle websocket request", "err", err)
			return
		}
		if resp != nil {
			if _, err := wrapped.Write(resp); err != nil {
				return
			}
		}
	}
}
