// Package export renders ticket lists as a table, JSON, YAML, CSV or an Excel
// workbook.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xeonx/timeago"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/goatkit/deskpilot/internal/conversation"
	"github.com/goatkit/deskpilot/internal/desk"
)

// Format is an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
	FormatXLSX  Format = "xlsx"
)

// SheetName is the worksheet holding exported tickets.
const SheetName = "Tickets"

// ParseFormat accepts the formats above; empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case "yml":
		return FormatYAML, nil
	case FormatTable, FormatJSON, FormatYAML, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("export: unknown format %q (want table, json, yaml, csv or xlsx)", s)
}

// Binary reports whether the format should not be written to a terminal.
func (f Format) Binary() bool { return f == FormatXLSX }

var header = []string{"ID", "Number", "Subject", "Status", "Priority", "Customer", "Email", "Created", "Modified"}

// StatusLabel title-cases a status for display ("on hold" -> "On Hold").
func StatusLabel(status string) string {
	if status == "" {
		return "-"
	}
	// Casers are stateful; build one per call.
	return cases.Title(language.English).String(strings.ToLower(status))
}

// Ago renders a backend timestamp relative to now, or "-" when unparseable.
func Ago(raw string, now time.Time) string {
	t, ok := conversation.ParseTime(raw)
	if !ok {
		return "-"
	}
	return timeago.English.FormatReference(t, now)
}

func row(t desk.Ticket) []string {
	return []string{
		t.ID,
		string(t.TicketNumber),
		t.Subject,
		t.Status,
		t.Priority,
		t.CustomerName(),
		t.CustomerEmail(),
		t.CreatedTime,
		t.ModifiedTime,
	}
}

// Writer renders tickets. Now anchors relative times in the table format.
type Writer struct {
	Now func() time.Time
}

// Write renders tickets to w in format f.
func (x Writer) Write(w io.Writer, f Format, tickets []desk.Ticket) error {
	switch f {
	case FormatJSON:
		if tickets == nil {
			tickets = []desk.Ticket{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tickets)
	case FormatYAML:
		return writeYAML(w, tickets)
	case FormatCSV:
		return writeCSV(w, tickets)
	case FormatXLSX:
		return writeXLSX(w, tickets)
	case FormatTable, "":
		return x.writeTable(w, tickets)
	}
	return fmt.Errorf("export: unknown format %q", f)
}

func (x Writer) writeTable(w io.Writer, tickets []desk.Ticket) error {
	now := time.Now()
	if x.Now != nil {
		now = x.Now()
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSUBJECT\tCUSTOMER\tCREATED")
	for _, t := range tickets {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, StatusLabel(t.Status), truncate(t.Subject, 60), t.CustomerName(), Ago(t.CreatedTime, now))
	}
	return tw.Flush()
}

// record is the YAML shape of an exported ticket.
type record struct {
	ID       string `yaml:"id"`
	Number   string `yaml:"number,omitempty"`
	Subject  string `yaml:"subject"`
	Status   string `yaml:"status"`
	Priority string `yaml:"priority,omitempty"`
	Customer string `yaml:"customer,omitempty"`
	Email    string `yaml:"email,omitempty"`
	Created  string `yaml:"created,omitempty"`
	Modified string `yaml:"modified,omitempty"`
}

func writeYAML(w io.Writer, tickets []desk.Ticket) error {
	doc := struct {
		Count   int      `yaml:"count"`
		Tickets []record `yaml:"tickets"`
	}{Count: len(tickets), Tickets: make([]record, 0, len(tickets))}
	for _, t := range tickets {
		doc.Tickets = append(doc.Tickets, record{
			ID:       t.ID,
			Number:   string(t.TicketNumber),
			Subject:  t.Subject,
			Status:   t.Status,
			Priority: t.Priority,
			Customer: t.CustomerName(),
			Email:    t.CustomerEmail(),
			Created:  t.CreatedTime,
			Modified: t.ModifiedTime,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export: encode yaml: %w", err)
	}
	return enc.Close()
}

func writeCSV(w io.Writer, tickets []desk.Ticket) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range tickets {
		if err := cw.Write(row(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, tickets []desk.Ticket) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i, t := range tickets {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row(t)
		if err := f.SetSheetRow(SheetName, cell, &r); err != nil {
			return fmt.Errorf("export: write row %d: %w", i+2, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
