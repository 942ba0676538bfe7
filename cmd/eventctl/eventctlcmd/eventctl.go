// Package eventctlcmd implements the sub-commands of eventctl. Commands
// register themselves with CommandRegistry on init.
package eventctlcmd

import (
	"io"
	"os"

	"github.com/spf13/afero"
	"go.eventsched.dev/core/allocator"
	mbp "go.eventsched.dev/core/mainboilerplate"
	"go.eventsched.dev/core/schedule"
)

var (
	// BaseCfg is configuration shared by all commands.
	BaseCfg = new(struct {
		Log mbp.LogConfig `group:"Logging" namespace:"log" env-namespace:"LOG"`
	})
	// CommandRegistry of eventctl sub-commands.
	CommandRegistry = mbp.NewCommandRegistry()

	// Fs from which capacity and event documents are read.
	Fs = afero.NewOsFs()
	// Stdout to which command output is written.
	Stdout io.Writer = os.Stdout
)

// SessionsConfig is common configuration of commands which build an Allocator.
type SessionsConfig struct {
	Sessions string `long:"sessions" env:"SESSIONS" description:"Path to a YAML capacity document. The morning, afternoon, and evening sessions are used if not set"`
}

func (cfg SessionsConfig) buildAllocator() (*allocator.Allocator, error) {
	var sc, err = schedule.LoadConfig(Fs, cfg.Sessions)
	if err != nil {
		return nil, err
	}
	return sc.Build()
}

func startup() {
	mbp.InitLog(BaseCfg.Log)
}
