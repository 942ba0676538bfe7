package mainboilerplate

import (
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// AddCommandFunc adds a sub-command to a parent flags.Command.
type AddCommandFunc func(*flags.Command) error

// CommandRegistry collects AddCommandFuncs by the dotted path of their parent
// command, allowing sub-command packages to register themselves from init()
// and be attached to a flags.Parser at startup. The root command has path "".
type CommandRegistry map[string][]AddCommandFunc

// NewCommandRegistry returns an empty CommandRegistry.
func NewCommandRegistry() CommandRegistry {
	return make(CommandRegistry)
}

// AddCommand registers a sub-command |command| of the command at |parentPath|,
// having the given descriptions and |data| as its go-flags configuration.
// Nested commands are registered under dotted parent paths:
//
//	AddCommand("", "level1", ...)
//	AddCommand("level1", "level2", ...)
func (cr CommandRegistry) AddCommand(parentPath, command, short, long string, data interface{}) {
	cr[parentPath] = append(cr[parentPath], func(cmd *flags.Command) error {
		var _, err = cmd.AddCommand(command, short, long, data)
		return err
	})
}

// AddCommands attaches commands registered under |rootPath| to |rootCmd|,
// and then recursively attaches commands registered under each of them.
func (cr CommandRegistry) AddCommands(rootPath string, rootCmd *flags.Command) error {
	for _, fn := range cr[rootPath] {
		if err := fn(rootCmd); err != nil {
			return errors.WithMessagef(err, "adding sub-command of %q", rootPath)
		}
	}
	for _, cmd := range rootCmd.Commands() {
		var path = cmd.Name
		if rootPath != "" {
			path = rootPath + "." + path
		}
		if err := cr.AddCommands(path, cmd); err != nil {
			return err
		}
	}
	return nil
}
