package jsonrpc

import (
	"context"
	"io"
)

// Conn is the write side of the socket a request arrived on. Subscription
// handlers pull it out of the request context to push notifications later.
type Conn interface {
	io.Writer
	// ID is unique per socket for the process lifetime.
	ID() uint64
	// Closed is closed when the socket goes away.
	Closed() <-chan struct{}
}

type connKey struct{}

func ContextWithConn(ctx context.Context, conn Conn) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

// ConnFromContext returns the socket behind the request; false over plain
// HTTP.
func ConnFromContext(ctx context.Context) (Conn, bool) {
	conn, ok := ctx.Value(connKey{}).(Conn)
	return conn, ok
}
