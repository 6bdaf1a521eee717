package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/cfd-invoice/internal/bill"
	"github.com/zombor/cfd-invoice/internal/export"
	"github.com/zombor/cfd-invoice/internal/intake"
	"github.com/zombor/cfd-invoice/internal/render"
	"github.com/zombor/cfd-invoice/internal/workflow"
)

const helpText = `Commands:
  scan <file>          scan an image or PDF
  history              show or hide recent scans
  open <#|id>          show a scan from the history
  delete <#|id>        remove a scan from the history
  clear                remove every scan from the history
  show                 show the current screen again
  reset                start a new scan
  print <file>         save the current bill as printable text
  export <file>        save the current bill as an XLSX workbook
  export-all <file>    save the whole history as an XLSX workbook
  help                 show this help
  quit                 exit`

// triggerCommands names the command that fires each user trigger
var triggerCommands = map[workflow.Trigger]string{
	workflow.TriggerSelect:        "scan",
	workflow.TriggerReset:         "reset",
	workflow.TriggerToggleHistory: "history",
	workflow.TriggerOpen:          "open",
	workflow.TriggerDelete:        "delete",
	workflow.TriggerClear:         "clear",
}

// commandsFor lists the commands that change the workflow in state
func commandsFor(state workflow.State) []string {
	var out []string
	for _, t := range workflow.PermittedTriggers(state) {
		if cmd, ok := triggerCommands[t]; ok {
			out = append(out, cmd)
		}
	}
	return out
}

// shell drives the workflow from typed commands
type shell struct {
	controller *workflow.Controller
	exporter   *export.Exporter
	in         *bufio.Scanner
	out        io.Writer
	now        func() time.Time
}

func newShell(controller *workflow.Controller, exporter *export.Exporter, in io.Reader, out io.Writer) *shell {
	return &shell{
		controller: controller,
		exporter:   exporter,
		in:         bufio.NewScanner(in),
		out:        out,
		now:        time.Now,
	}
}

// run reads commands until quit or end of input
func (s *shell) run(ctx context.Context) error {
	s.show()

	for {
		fmt.Fprint(s.out, "\ncfd-invoice> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}

		fields := strings.Fields(s.in.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, arg := strings.ToLower(fields[0]), strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s.in.Text()), fields[0]))

		switch cmd {
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			fmt.Fprintln(s.out, helpText)
		case "scan":
			s.scan(ctx, arg)
		case "history":
			s.report(s.controller.ToggleHistory())
			s.show()
		case "open":
			s.open(arg)
		case "delete", "rm":
			s.delete(arg)
		case "clear":
			s.clear()
		case "show":
			s.show()
		case "reset":
			s.report(s.controller.Reset())
			s.show()
		case "print":
			s.print(arg)
		case "export":
			s.exportCurrent(arg)
		case "export-all":
			s.exportAll(arg)
		default:
			fmt.Fprintf(s.out, "Unknown command %q. Type 'help' for a list of commands.\n", cmd)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// scan reads path, starts an extraction and waits for the result
func (s *shell) scan(ctx context.Context, path string) {
	if path == "" {
		fmt.Fprintln(s.out, "Usage: scan <file>")
		return
	}

	doc, err := intake.ReadFile(path)
	if err != nil {
		fmt.Fprintln(s.out, intake.Notice(err))
		return
	}

	// Scanning again from a result or the history starts a new scan
	switch s.controller.State() {
	case workflow.StateSuccess, workflow.StateError, workflow.StateViewingHistory:
		if err := s.controller.Reset(); err != nil {
			s.report(err)
			return
		}
	}

	if err := s.controller.Select(ctx, doc); err != nil {
		s.report(err)
		return
	}
	if doc.IsPDF() {
		fmt.Fprintf(s.out, "PDF with %d page(s)\n", doc.Pages)
	}
	s.show()

	s.controller.Wait()
	s.show()
}

func (s *shell) open(arg string) {
	if !s.enterHistory() {
		return
	}
	id, ok := s.resolve(arg)
	if !ok {
		return
	}
	s.report(s.controller.Open(id))
	s.show()
}

func (s *shell) delete(arg string) {
	if !s.enterHistory() {
		return
	}
	id, ok := s.resolve(arg)
	if !ok {
		return
	}
	if s.report(s.controller.Delete(id)) {
		fmt.Fprintln(s.out, "Deleted.")
	}
	s.show()
}

func (s *shell) clear() {
	if !s.enterHistory() {
		return
	}
	if len(s.controller.History()) == 0 {
		fmt.Fprintln(s.out, "History is already empty.")
		return
	}

	fmt.Fprint(s.out, "Are you sure you want to clear all history? [y/N] ")
	confirmed := false
	if s.in.Scan() {
		answer := strings.ToLower(strings.TrimSpace(s.in.Text()))
		confirmed = answer == "y" || answer == "yes"
	}

	err := s.controller.ClearHistory(confirmed)
	if errors.Is(err, workflow.ErrNotConfirmed) {
		fmt.Fprintln(s.out, "Kept history.")
		return
	}
	if s.report(err) {
		fmt.Fprintln(s.out, "History cleared.")
	}
	s.show()
}

func (s *shell) print(arg string) {
	if arg == "" {
		fmt.Fprintln(s.out, "Usage: print <file>")
		return
	}
	snap := s.controller.Snapshot()
	if snap.State != workflow.StateSuccess || snap.Record == nil {
		fmt.Fprintln(s.out, "There is no bill to print. Scan or open one first.")
		return
	}

	path, err := s.exporter.Print(arg, snap.Record, render.NewFooter(s.now()))
	if s.report(err) {
		fmt.Fprintf(s.out, "Saved %s\n", path)
	}
}

func (s *shell) exportCurrent(arg string) {
	if arg == "" {
		fmt.Fprintln(s.out, "Usage: export <file.xlsx>")
		return
	}
	snap := s.controller.Snapshot()
	if snap.State != workflow.StateSuccess || snap.Record == nil {
		fmt.Fprintln(s.out, "There is no bill to export. Scan or open one first, or use export-all.")
		return
	}

	entry := bill.Entry{ID: snap.EntryID, Timestamp: s.now().UnixMilli(), Data: *snap.Record}
	for _, e := range s.controller.History() {
		if e.ID == snap.EntryID {
			entry = e
			break
		}
	}

	path, err := s.exporter.Workbook(arg, []bill.Entry{entry})
	if s.report(err) {
		fmt.Fprintf(s.out, "Saved %s\n", path)
	}
}

func (s *shell) exportAll(arg string) {
	if arg == "" {
		fmt.Fprintln(s.out, "Usage: export-all <file.xlsx>")
		return
	}

	path, err := s.exporter.Workbook(arg, s.controller.History())
	if errors.Is(err, export.ErrNothingToExport) {
		fmt.Fprintln(s.out, "History is empty.")
		return
	}
	if s.report(err) {
		fmt.Fprintf(s.out, "Saved %s (%d bills)\n", path, len(s.controller.History()))
	}
}

// enterHistory switches to the history view when needed
func (s *shell) enterHistory() bool {
	if s.controller.State() == workflow.StateViewingHistory {
		return true
	}
	return s.report(s.controller.ToggleHistory())
}

// resolve turns a list position or an id into an entry id
func (s *shell) resolve(arg string) (string, bool) {
	if arg == "" {
		fmt.Fprintln(s.out, "Give a list number or an id. Type 'history' to see the list.")
		return "", false
	}

	entries := s.controller.History()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(entries) {
			fmt.Fprintf(s.out, "There is no scan #%d.\n", n)
			return "", false
		}
		return entries[n-1].ID, true
	}
	return arg, true
}

func (s *shell) show() {
	render.Screen(s.out, s.controller.Snapshot(), s.controller.History(), render.NewFooter(s.now()))
}

// report prints err and returns whether the command succeeded
func (s *shell) report(err error) bool {
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, workflow.ErrBusy):
		fmt.Fprintln(s.out, "A document is still being scanned. Please wait.")
	case errors.Is(err, workflow.ErrUnknownEntry):
		fmt.Fprintln(s.out, "That scan is not in the history.")
	case errors.Is(err, workflow.ErrInvalidTransition):
		state := s.controller.State()
		fmt.Fprintf(s.out, "Not available right now (%s).", strings.ToLower(state.String()))
		if available := commandsFor(state); len(available) > 0 {
			fmt.Fprintf(s.out, " Try: %s", strings.Join(available, ", "))
		}
		fmt.Fprintln(s.out)
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
	return false
}
