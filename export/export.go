// Package export renders Allocator ledgers, batch outcomes, and capacity
// tables for people and spreadsheets. It carries no allocation logic.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"go.eventsched.dev/core/allocator"
	"gopkg.in/yaml.v2"
)

// Format of rendered output.
type Format string

const (
	Table Format = "table"
	CSV   Format = "csv"
	YAML  Format = "yaml"
	JSON  Format = "json"
)

// ParseFormat maps a format name to its Format.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case Table, CSV, YAML, JSON:
		return f, nil
	case "":
		return Table, nil
	default:
		return "", errors.Errorf("unknown format (%s)", name)
	}
}

// LedgerHeader returns the column names of exported Ledger rows: title,
// label, and session, then start and end, then one column per kind.
func LedgerHeader(kinds allocator.Kinds) []string {
	var out = []string{"Title", "Label", "Session", "Start", "End"}
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}

// LedgerRow returns the exported column values of |rec|.
func LedgerRow(kinds allocator.Kinds, rec allocator.EventRecord) []string {
	var out = []string{rec.Title, rec.Label, rec.Session, rec.Start, rec.End}
	for _, k := range kinds {
		out = append(out, strconv.Itoa(rec.Requires[k]))
	}
	return out
}

// WriteLedger renders the Ledger of |snap| to |w| in Format |f|.
func WriteLedger(w io.Writer, f Format, snap allocator.Snapshot) error {
	switch f {
	case CSV:
		return WriteCSV(w, snap.Kinds, snap.Ledger)
	case Table:
		return WriteTable(w, snap.Kinds, snap.Ledger)
	case YAML:
		return writeYAML(w, snap.Ledger)
	case JSON:
		return writeJSON(w, snap.Ledger)
	default:
		return errors.Errorf("unknown format (%s)", f)
	}
}

// WriteCSV writes a header row and then a row for each of |records|.
func WriteCSV(w io.Writer, kinds allocator.Kinds, records []allocator.EventRecord) error {
	var cw = csv.NewWriter(w)

	if err := cw.Write(LedgerHeader(kinds)); err != nil {
		return errors.WithMessage(err, "writing CSV header")
	}
	for i, rec := range records {
		if err := cw.Write(LedgerRow(kinds, rec)); err != nil {
			return errors.WithMessagef(err, "writing CSV row %d", i)
		}
	}
	cw.Flush()
	return errors.WithMessage(cw.Error(), "flushing CSV")
}

// WriteTable writes |records| as a human-readable table.
func WriteTable(w io.Writer, kinds allocator.Kinds, records []allocator.EventRecord) error {
	var table = tablewriter.NewWriter(w)
	table.Header(anys(LedgerHeader(kinds))...)

	for _, rec := range records {
		if err := table.Append(LedgerRow(kinds, rec)); err != nil {
			return errors.WithMessage(err, "appending ledger row")
		}
	}
	return table.Render()
}

// WriteOutcomes renders batch |outcomes| to |w| in Format |f|. Table and CSV
// formats have a row per outcome, in submission order.
func WriteOutcomes(w io.Writer, f Format, outcomes []allocator.Outcome) error {
	var header = []string{"Index", "Title", "Result", "Session", "Label", "Reason"}
	var rows [][]string

	for _, o := range outcomes {
		var row = []string{strconv.Itoa(o.Index), o.Request.Title}
		if o.Placed() {
			row = append(row, "placed", o.Record.Session, o.Record.Label, "")
		} else {
			row = append(row, "rejected", "", "", string(o.Reason))
		}
		rows = append(rows, row)
	}

	switch f {
	case Table:
		var table = tablewriter.NewWriter(w)
		table.Header(anys(header)...)

		for _, row := range rows {
			if err := table.Append(row); err != nil {
				return errors.WithMessage(err, "appending outcome row")
			}
		}
		return table.Render()
	case CSV:
		var cw = csv.NewWriter(w)
		_ = cw.Write(header)
		_ = cw.WriteAll(rows) // WriteAll flushes.
		return errors.WithMessage(cw.Error(), "writing CSV")
	case YAML:
		return writeYAML(w, outcomes)
	case JSON:
		return writeJSON(w, outcomes)
	default:
		return errors.Errorf("unknown format (%s)", f)
	}
}

// WriteSessions renders the capacity table of |snap| to |w| in Format |f|.
// Table and CSV formats have a row per session, and a column per kind
// holding "available/initial".
func WriteSessions(w io.Writer, f Format, snap allocator.Snapshot) error {
	var header = []string{"Session", "Events"}
	for _, k := range snap.Kinds {
		header = append(header, string(k))
	}
	var rows [][]string

	for _, s := range snap.Sessions {
		var row = []string{s.Name, strconv.Itoa(len(snap.RecordsOf(s.Name)))}
		for _, k := range snap.Kinds {
			row = append(row, fmt.Sprintf("%d/%d", s.Available[k], s.Initial[k]))
		}
		rows = append(rows, row)
	}

	switch f {
	case Table:
		var table = tablewriter.NewWriter(w)
		table.Header(anys(header)...)

		if err := table.Bulk(rows); err != nil {
			return errors.WithMessage(err, "appending session rows")
		}
		return table.Render()
	case CSV:
		var cw = csv.NewWriter(w)
		_ = cw.Write(header)
		_ = cw.WriteAll(rows)
		return errors.WithMessage(cw.Error(), "writing CSV")
	case YAML:
		return writeYAML(w, snap.Sessions)
	case JSON:
		return writeJSON(w, snap.Sessions)
	default:
		return errors.Errorf("unknown format (%s)", f)
	}
}

// Write renders |v| to |w| in the structured YAML or JSON Format.
func Write(w io.Writer, f Format, v interface{}) error {
	switch f {
	case YAML:
		return writeYAML(w, v)
	case JSON:
		return writeJSON(w, v)
	default:
		return errors.Errorf("format (%s) is not structured", f)
	}
}

func writeYAML(w io.Writer, v interface{}) error {
	var b, err = yaml.Marshal(v)
	if err != nil {
		return errors.WithMessage(err, "encoding YAML")
	}
	_, err = w.Write(b)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	var enc = json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.WithMessage(enc.Encode(v), "encoding JSON")
}

func anys(s []string) []interface{} {
	var out = make([]interface{}, len(s))
	for i := range s {
		out[i] = s[i]
	}
	return out
}
