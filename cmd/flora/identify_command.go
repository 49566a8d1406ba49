package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"flora/internal/identification"
	"flora/internal/ledger"
	"flora/internal/notifications"
	"flora/internal/species"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var ledgerPath string
	var noCache bool

	cmd := &cobra.Command{
		Use:   "identify DIR",
		Short: "Identify every image in a directory and update the results ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.loggerFor(cmd)

			rec, err := newRecognizer(cfg, logger, noCache)
			if err != nil {
				return err
			}
			defer rec.Close()

			pipeline := identification.NewPipeline(cfg, rec,
				identification.WithLogger(logger),
				identification.WithNotifier(notifications.NewService(cfg)),
			)
			task := pipeline.Start(cmd.Context(), identification.Request{Dir: args[0], LedgerPath: ledgerPath})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for ev := range task.Events() {
				if !ctx.jsonOutput() {
					printIdentifyEvent(out, ev, colorize)
				}
			}
			report, runErr := task.Wait()
			if report == nil {
				return runErr
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, identifyJSON{Report: report, Rows: report.Ledger.Rows(), Cache: cacheCounters(rec)}); err != nil {
					return err
				}
			} else {
				printIdentifySummary(out, report, rec, colorize)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Ledger CSV to update (default: <DIR>/<identification.ledger_name>)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the recognition cache")
	return cmd
}

type identifyJSON struct {
	*identification.Report
	Rows  []ledger.Row   `json:"rows"`
	Cache map[string]int `json:"cache,omitempty"`
}

func cacheCounters(rec *recognizer) map[string]int {
	if rec == nil || rec.cache == nil {
		return nil
	}
	return map[string]int{"hits": int(rec.cache.Hits()), "misses": int(rec.cache.Misses())}
}

func printIdentifyEvent(out io.Writer, ev identification.Event, colorize bool) {
	switch ev.Type {
	case identification.EventStarted:
		fmt.Fprintf(out, "Identifying %d image(s) (run %s)\n", ev.Total, ev.RunID)
	case identification.EventIdentified:
		msg := fmt.Sprintf("%s (%s)", species.Display(ev.Species), formatPercent(ev.Confidence))
		fmt.Fprintln(out, progressLine(ev.Index, ev.Total, ev.Filename, statusOK, msg, colorize))
	case identification.EventUnidentified:
		fmt.Fprintln(out, progressLine(ev.Index, ev.Total, ev.Filename, statusWarn, species.Unidentified, colorize))
	case identification.EventSkipped:
		fmt.Fprintln(out, progressLine(ev.Index, ev.Total, ev.Filename, statusError, "skipped ("+ev.Reason+")", colorize))
	case identification.EventCancelled:
		fmt.Fprintln(out, colorizeKind(statusWarn, "Cancelled; rows identified so far were saved", colorize))
	case identification.EventAborted:
		fmt.Fprintln(out, colorizeKind(statusError, "Aborted: "+ev.Detail, colorize))
	}
}

func printIdentifySummary(out io.Writer, report *identification.Report, rec *recognizer, colorize bool) {
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Summary", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := [][]string{
		{"Images", strconv.Itoa(report.Total)},
		{"Identified", strconv.Itoa(report.Identified)},
		{"Unidentified", strconv.Itoa(report.Unidentified)},
		{"Skipped", strconv.Itoa(len(report.Skipped))},
		{"Cancelled", yesNo(report.Cancelled)},
		{"Ledger", report.LedgerPath},
	}
	if counters := cacheCounters(rec); counters != nil {
		rows = append(rows, []string{"Cache hits", strconv.Itoa(counters["hits"])})
	}
	fmt.Fprintln(out, renderKeyValueTable(rows))

	if len(report.Skipped) == 0 {
		return
	}
	skipRows := make([][]string, 0, len(report.Skipped))
	for _, s := range report.Skipped {
		skipRows = append(skipRows, []string{s.Filename, s.Reason, s.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Skipped", "Reason", "Detail"}, skipRows, nil))
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 1, 64) + "%"
}
