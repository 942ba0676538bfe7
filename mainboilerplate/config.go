// Package mainboilerplate contains shared boilerplate for eventsched programs:
// configuration and flag parsing, logging, diagnostics, and service identity.
// Methods are narrowly scoped, so that callers needn't buy-in to an
// all-or-nothing approach.
package mainboilerplate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

// Version and BuildDate of the binary, set at link time with
// -ldflags "-X go.eventsched.dev/core/mainboilerplate.Version=...".
var (
	Version   = "development"
	BuildDate = "unknown"
)

// ConfigDirs returns the directories searched, in order, for an INI file:
//   - The current working directory.
//   - ~/.config/eventsched (under the user's $HOME or %UserProfile% directory).
func ConfigDirs() []string {
	var out = []string{"."}
	for _, env := range []string{"HOME", "UserProfile"} {
		if home := os.Getenv(env); home != "" {
			out = append(out, filepath.Join(home, ".config", "eventsched"))
		}
	}
	return out
}

// ParseConfigFile parses the first INI file named |configName| found within
// ConfigDirs into the Parser, and returns its path. An empty path is returned
// if no file was found.
func ParseConfigFile(parser *flags.Parser, configName string) (string, error) {
	// Allow unknown options while parsing an INI file.
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown
	defer func() { parser.Options = origOptions }()

	var iniParser = flags.NewIniParser(parser)

	for _, dir := range ConfigDirs() {
		var path = filepath.Join(dir, configName)

		if err := iniParser.ParseFile(path); err == nil {
			return path, nil
		} else if os.IsNotExist(err) {
			// Pass.
		} else {
			return "", err
		}
	}
	return "", nil
}

// MustParseConfig requires that the Parser parse from the combination of an
// optional INI file, configured environment bindings, and explicit flags.
func MustParseConfig(parser *flags.Parser, configName string) {
	if _, err := ParseConfigFile(parser, configName); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	MustParseArgs(parser)
}

// MustParseArgs requires that Parser be able to ParseArgs without error.
func MustParseArgs(parser *flags.Parser) {
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		var flagErr, ok = err.(*flags.Error)
		if !ok {
			Must(err, "fatal error")
		}

		switch flagErr.Type {
		case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
			// A problem of the configuration object |parser| was asked to
			// parse (a developer error rather than an input error).
			panic(err)

		case flags.ErrCommandRequired:
			// Follow go-flag's "Please specify one command of: ... " with full usage.
			os.Stderr.WriteString("\n")
			writeUsage(os.Stderr, parser)
			os.Exit(1)

		case flags.ErrHelp:
			if parser.Options&flags.PrintErrors == 0 {
				writeUsage(os.Stderr, parser)
			}
			os.Exit(0)

		default:
			// A problem of input, which go-flags has already reported.
			os.Exit(1)
		}
	}
}

func writeUsage(w io.Writer, parser *flags.Parser) {
	parser.WriteHelp(w)
	fmt.Fprintf(w, "\nVersion %s, built at %s.\n", Version, BuildDate)
}

// AddPrintConfigCmd to the Parser. The "print-config" command helps users test
// whether their applications are correctly configured, by exporting all runtime
// configuration in INI format.
func AddPrintConfigCmd(parser *flags.Parser, configName string) {
	_, err := parser.AddCommand("print-config", "Print combined configuration and exit", `
print-config parses the combined configuration from `+configName+`, flags,
and environment variables, and then writes the configuration to stdout in INI format.
`, &printConfig{Parser: parser, Out: os.Stdout})
	Must(err, "failed to add print-config command")
}

type printConfig struct {
	*flags.Parser `no-flag:"t"`
	Out           io.Writer `no-flag:"t"`
}

func (p printConfig) Execute([]string) error {
	var ini = flags.NewIniParser(p.Parser)
	ini.Write(p.Out, flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
	return nil
}
