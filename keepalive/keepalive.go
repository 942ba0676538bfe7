package keepalive

import (
	"net"
	"time"
)

// TCPListener sets TCP keep-alive timeouts on accepted connections, so
// dead TCP connections (eg, closing a laptop mid-request) eventually go away.
type TCPListener struct {
	*net.TCPListener
}

// Period between keep-alive probes of accepted connections.
var Period = 3 * time.Minute

// Accept a connection, and enable keep-alive probes on it.
func (ln TCPListener) Accept() (net.Conn, error) {
	var tc, err = ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	if err = tc.SetKeepAlive(true); err == nil {
		err = tc.SetKeepAlivePeriod(Period)
	}
	if err != nil {
		_ = tc.Close()
		return nil, err
	}
	return tc, nil
}
