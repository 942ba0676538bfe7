package mainboilerplate

import (
	"fmt"
	"net"
	"os"

	petname "github.com/dustinkirkland/golang-petname"
	"go.eventsched.dev/core/server"
)

// ServiceConfig represents identification and addressing configuration of the process.
type ServiceConfig struct {
	ID   string `long:"id" env:"ID" description:"Unique ID of this process. Auto-generated if not set"`
	Host string `long:"host" env:"HOST" description:"Addressable, advertised hostname or IP of this process. Hostname is used if not set"`
	Port uint16 `long:"port" env:"PORT" default:"8080" description:"Service port for HTTP requests. A random port is used if zero"`
}

// ProcessID returns the configured ID, or a generated petname if none is set.
func (cfg ServiceConfig) ProcessID() string {
	if cfg.ID != "" {
		return cfg.ID
	}
	return petname.Generate(2, "-")
}

// AdvertisedEndpoint of the Server, under the configured Host.
func (cfg ServiceConfig) AdvertisedEndpoint(srv *server.Server) string {
	var host = cfg.Host
	if host == "" {
		var err error
		host, err = os.Hostname()
		Must(err, "failed to determine hostname")
	}
	return fmt.Sprintf("http://%s:%d", host, srv.RawListener.Addr().(*net.TCPAddr).Port)
}
