package main

import (
	"github.com/jessevdk/go-flags"

	"go.eventsched.dev/core/cmd/eventctl/eventctlcmd"
	mbp "go.eventsched.dev/core/mainboilerplate"
)

const iniFilename = "eventctl.ini"

func main() {
	var parser = flags.NewParser(eventctlcmd.BaseCfg, flags.Default)

	parser.LongDescription = `eventctl places events into capacity-limited sessions.

	See --help pages of each sub-command for documentation and usage examples.
	Optionally configure eventctl with a '` + iniFilename + `' file in the current working directory,
	or with '~/.config/eventsched/` + iniFilename + `'. Use the 'print-config' sub-command to inspect
	the tool's current configuration.
	`

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.Must(eventctlcmd.CommandRegistry.AddCommands("", parser.Command), "could not add subcommand")

	mbp.MustParseConfig(parser, iniFilename)
}
