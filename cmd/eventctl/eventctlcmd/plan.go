package eventctlcmd

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.eventsched.dev/core/allocator"
	"go.eventsched.dev/core/export"
	"go.eventsched.dev/core/schedule"
)

type cmdPlan struct {
	SessionsConfig
	Events  string `long:"events" default:"-" description:"Path to a YAML list of events to place. Use '-' for stdin"`
	Policy  string `long:"policy" default:"as-given" choice:"as-given" choice:"by-size" description:"Order in which the batch is placed"`
	Release []int  `long:"release" description:"Ledger index to release after placement. May be repeated, in which case each index refers to the ledger left by the prior release"`
	Format  string `long:"format" short:"o" choice:"table" choice:"csv" choice:"yaml" choice:"json" default:"table" description:"Output format"`
}

func init() {
	CommandRegistry.AddCommand("", "plan", "Place a batch of events into sessions", `
Place a batch of events into sessions, and print the outcome.

Events are read as a YAML list, each having a title, an optional start and
end (as HH:MM), and the resources it requires:

>  - title: Opening keynote
>    start: "09:00"
>    end: "10:00"
>    requires: {projectors: 1, mikes: 2, chairs: 5}

Each event is placed into the first session, in capacity document order, having
enough of every required resource. Events which fit nowhere are rejected.
With --policy=by-size, smaller events are placed before larger ones.

Placed events may then be released with --release, which returns their
resources to the session. Results can be output in a variety of --format options:
table: Prints outcomes, the final ledger, and remaining capacity as tables.
csv:   Prints the final ledger as CSV.
yaml:  Prints a YAML document of outcomes, releases, and the final snapshot.
json:  Prints the same document as JSON.
`, &cmdPlan{})
}

// planResult is the structured output of the plan command.
type planResult struct {
	Outcomes []allocator.Outcome     `json:"outcomes" yaml:"outcomes"`
	Released []allocator.EventRecord `json:"released,omitempty" yaml:"released,omitempty"`
	Snapshot allocator.Snapshot      `json:"snapshot" yaml:"snapshot"`
}

func (cmd *cmdPlan) Execute([]string) error {
	startup()

	var result, err = cmd.run()
	if err != nil {
		return err
	}
	return cmd.output(result)
}

func (cmd *cmdPlan) run() (planResult, error) {
	var result planResult

	var format, err = export.ParseFormat(cmd.Format)
	if err != nil {
		return result, err
	}
	cmd.Format = string(format)

	policy, err := allocator.ParseOrderingPolicy(cmd.Policy)
	if err != nil {
		return result, err
	}
	alloc, err := cmd.buildAllocator()
	if err != nil {
		return result, err
	}
	events, err := schedule.LoadEvents(Fs, cmd.Events)
	if err != nil {
		return result, err
	}

	if result.Outcomes, err = alloc.SubmitBatch(events, policy); err != nil {
		return result, err
	}
	for _, ind := range cmd.Release {
		var rec, err = alloc.Release(ind)
		if err != nil {
			return result, errors.WithMessagef(err, "releasing %d", ind)
		}
		result.Released = append(result.Released, rec)
	}
	result.Snapshot = alloc.Snapshot()

	if err = result.Snapshot.CheckConservation(); err != nil {
		log.WithField("err", err).Error("capacity is not conserved")
		return result, err
	}
	log.WithFields(log.Fields{
		"events":   len(events),
		"placed":   len(result.Snapshot.Ledger) + len(result.Released),
		"released": len(result.Released),
		"policy":   policy,
	}).Info("planned events")

	return result, nil
}

func (cmd *cmdPlan) output(result planResult) error {
	switch f := export.Format(cmd.Format); f {
	case export.CSV:
		return export.WriteCSV(Stdout, result.Snapshot.Kinds, result.Snapshot.Ledger)
	case export.YAML, export.JSON:
		return export.Write(Stdout, f, result)
	default:
		var sections = []struct {
			title string
			write func() error
		}{
			{"Outcomes", func() error { return export.WriteOutcomes(Stdout, export.Table, result.Outcomes) }},
			{"Released", func() error { return export.WriteTable(Stdout, result.Snapshot.Kinds, result.Released) }},
			{"Ledger", func() error { return export.WriteTable(Stdout, result.Snapshot.Kinds, result.Snapshot.Ledger) }},
			{"Sessions", func() error { return export.WriteSessions(Stdout, export.Table, result.Snapshot) }},
		}
		for _, s := range sections {
			if s.title == "Released" && len(result.Released) == 0 {
				continue
			}
			fmt.Fprintf(Stdout, "%s:\n", s.title)
			if err := s.write(); err != nil {
				return err
			}
			fmt.Fprintln(Stdout)
		}
		return nil
	}
}
