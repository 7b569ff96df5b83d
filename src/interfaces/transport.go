package interfaces

import "context"

// -----------------------------------------------------------------------------
// IStreamTransport abstracts the upstream websocket so the connection state
// machine can be driven by a fake in tests.
// -----------------------------------------------------------------------------

type IStreamTransport interface {

	// Dial opens a new connection to the stream endpoint.
	Dial(ctx context.Context, url string) (IStreamConn, error)
}

// -----------------------------------------------------------------------------
// IStreamConn is one live connection.
// -----------------------------------------------------------------------------

type IStreamConn interface {

	// ReadMessage blocks until the next inbound frame or a transport error.
	ReadMessage() ([]byte, error)

	// -----------------------------------------------------------------------------

	// WriteJSON sends one JSON-encoded control message (the subscription).
	WriteJSON(v interface{}) error

	// -----------------------------------------------------------------------------

	// Ping sends a protocol-level keepalive frame.
	Ping() error

	// -----------------------------------------------------------------------------

	// Close tears the connection down.
	Close() error
}
