package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/soheilhy/cmux"
	"go.eventsched.dev/core/keepalive"
	"golang.org/x/sync/errgroup"
)

// Server bundles an HTTP server, multiplexed over a single bound TCP socket
// (using CMux). Additional protocols may be added to the Server by
// interacting directly with its provided CMux.
type Server struct {
	// RawListener is the bound TCP listener of the Server.
	RawListener *net.TCPListener
	// CMux wraps RawListener to provide connection protocol multiplexing over
	// a single bound socket. An HTTP/1 Listener is provided by default.
	// Additional Listeners may be added directly via CMux.Match() -- though
	// it is then the user's responsibility to Serve the resulting Listeners.
	CMux cmux.CMux
	// HTTPListener is a CMux Listener for HTTP connections.
	HTTPListener net.Listener
	// HTTPMux is the http.ServeMux which is served by QueueTasks.
	HTTPMux *http.ServeMux
	// Ctx is cancelled when Server.GracefulStop is called.
	Ctx context.Context

	httpServer *http.Server
	cancel     context.CancelFunc
}

// New builds and returns a Server of the given TCP network interface |iface|
// and |port|. |port| may be zero, in which case a random free port is assigned.
func New(iface string, port uint16) (*Server, error) {
	var addr = fmt.Sprintf("%s:%d", iface, port)

	var raw, err = net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to bind service address (%s)", addr)
	}

	var ctx, cancel = context.WithCancel(context.Background())

	var srv = &Server{
		HTTPMux:     http.NewServeMux(),
		RawListener: raw.(*net.TCPListener),
		Ctx:         ctx,
		cancel:      cancel,
	}
	srv.httpServer = &http.Server{
		Handler:           srv.HTTPMux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	srv.CMux = cmux.New(keepalive.TCPListener{TCPListener: srv.RawListener})

	srv.CMux.HandleError(func(err error) bool {
		if _, ok := err.(net.Error); !ok {
			log.WithField("err", err).Warn("failed to CMux client connection to a listener")
		}
		return true // Continue serving RawListener.
	})

	// Connections sending HTTP/1 verbs (GET, PUT, POST etc) are assumed to be HTTP.
	srv.HTTPListener = srv.CMux.Match(cmux.HTTP1Fast())

	return srv, nil
}

// Endpoint of the Server.
func (s *Server) Endpoint() string {
	return "http://" + s.RawListener.Addr().String()
}

// QueueTasks serving the CMux and HTTP component servers onto the errgroup.Group.
// If additional Listeners are derived from the Server.CMux, attempts to Accept
// will block until the CMux itself begins serving.
func (s *Server) QueueTasks(tg *errgroup.Group) {
	tg.Go(func() error {
		if err := s.CMux.Serve(); err != nil && s.Ctx.Err() == nil {
			return errors.WithMessage(err, "CMux.Serve")
		}
		return nil // Swallow error after GracefulStop.
	})
	tg.Go(func() error {
		if err := s.httpServer.Serve(s.HTTPListener); err != nil && s.Ctx.Err() == nil {
			return errors.WithMessage(err, "http.Serve")
		}
		return nil // Swallow error after GracefulStop.
	})
}

// GracefulStop cancels the Server Ctx, waits up to |timeout| for in-flight
// HTTP requests to complete, and then closes the bound listener.
func (s *Server) GracefulStop(timeout time.Duration) {
	s.cancel()

	var ctx, cancel = context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.WithField("err", err).Warn("http server shutdown did not complete")
	}
	s.CMux.Close()
}
