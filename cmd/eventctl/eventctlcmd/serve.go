package eventctlcmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"go.eventsched.dev/core/httpapi"
	mbp "go.eventsched.dev/core/mainboilerplate"
	"go.eventsched.dev/core/server"
	"golang.org/x/sync/errgroup"
)

type cmdServe struct {
	SessionsConfig
	Service         mbp.ServiceConfig     `group:"Service" namespace:"service" env-namespace:"SERVICE"`
	Diagnostics     mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
	ShutdownTimeout time.Duration         `long:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"10s" description:"Time allowed for in-flight requests to complete on shutdown"`
}

func init() {
	CommandRegistry.AddCommand("", "serve", "Serve an HTTP API of session capacity", `
Serve an HTTP API which places and releases events against the configured
sessions. The API offers:

>  GET    /sessions               Kinds, sessions, and the event ledger.
>  GET    /ledger?format=csv      The ledger, as table, csv, yaml, or json.
>  POST   /events?policy=by-size  Place a JSON list of events.
>  DELETE /events?index=N         Release the ledger event at index N.
>  DELETE /events?id=ID           Release the ledger event having ID.

Prometheus metrics are served at /debug/metrics, and a liveness check returning
the process ID at /debug/ready. The server runs until SIGINT or SIGTERM.
`, &cmdServe{})
}

func (cmd *cmdServe) Execute([]string) error {
	startup()

	var alloc, err = cmd.buildAllocator()
	if err != nil {
		return err
	}
	srv, err := server.New("", cmd.Service.Port)
	if err != nil {
		return err
	}

	var id = cmd.Service.ProcessID()
	httpapi.New(id, alloc).Register(srv.HTTPMux)
	mbp.InitDiagnostics(cmd.Diagnostics, srv.HTTPMux)

	log.WithFields(log.Fields{
		"id":        id,
		"endpoint":  cmd.Service.AdvertisedEndpoint(srv),
		"sessions":  len(alloc.Snapshot().Sessions),
		"version":   mbp.Version,
		"buildDate": mbp.BuildDate,
	}).Info("serving eventsched API")

	var ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var tg, tgCtx = errgroup.WithContext(ctx)
	srv.QueueTasks(tg)

	tg.Go(func() error {
		<-tgCtx.Done()
		log.Info("shutting down")
		srv.GracefulStop(cmd.ShutdownTimeout)
		return nil
	})
	return tg.Wait()
}
