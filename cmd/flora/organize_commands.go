package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"flora/internal/config"
	"flora/internal/ledger"
	"flora/internal/notifications"
	"flora/internal/organizer"
	"flora/internal/services"
)

func newRenameCommand(ctx *commandContext) *cobra.Command {
	var ledgerPath string
	var prefix string
	var dryRun bool
	var includeUnidentified bool

	cmd := &cobra.Command{
		Use:   "rename DIR",
		Short: "Rename images to <prefix>_<species>_<name> using the results ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := args[0]
			path := strings.TrimSpace(ledgerPath)
			if path == "" {
				path = cfg.LedgerPath(dir)
			}
			led, err := ledger.Load(path)
			if err != nil {
				return err
			}

			opts := []organizer.Option{
				organizer.WithLogger(ctx.loggerFor(cmd)),
				organizer.WithNotifier(notifications.NewService(cfg)),
				organizer.WithDryRun(dryRun),
			}
			if cmd.Flags().Changed("include-unidentified") {
				opts = append(opts, organizer.WithIncludeUnidentified(includeUnidentified))
			}
			report, err := organizer.NewRenamer(cfg, opts...).Apply(cmd.Context(), led, dir, prefix)
			return renderOrganizerReport(cmd, ctx, report, err)
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Results ledger CSV (default: <DIR>/<identification.ledger_name>)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Label prefix, letters and digits only")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show planned renames without touching files")
	cmd.Flags().BoolVar(&includeUnidentified, "include-unidentified", false, "Also rename images recorded as unidentified")
	_ = cmd.MarkFlagRequired("prefix")
	return cmd
}

func newGroupCommand(ctx *commandContext) *cobra.Command {
	var ledgerPath string
	var dryRun bool
	var includeUnidentified bool
	var fromNames bool

	cmd := &cobra.Command{
		Use:   "group DIR",
		Short: "Move images into one subdirectory per species",
		Long: "Move images into one subdirectory per species.\n\n" +
			"Species come from the results ledger (--ledger, default <DIR>/<identification.ledger_name>).\n" +
			"Files renamed by `flora rename` are matched through the ledger row they were built from.\n" +
			"Without a ledger, --from-names trusts the <prefix>_<species>_<name> convention alone.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := groupSource(cfg, args[0], ledgerPath, fromNames)
			if err != nil {
				return err
			}

			opts := []organizer.Option{
				organizer.WithLogger(ctx.loggerFor(cmd)),
				organizer.WithNotifier(notifications.NewService(cfg)),
				organizer.WithDryRun(dryRun),
			}
			if cmd.Flags().Changed("include-unidentified") {
				opts = append(opts, organizer.WithIncludeUnidentified(includeUnidentified))
			}
			report, err := organizer.NewGrouper(cfg, opts...).Apply(cmd.Context(), args[0], source)
			return renderOrganizerReport(cmd, ctx, report, err)
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "Results ledger CSV used as the species source (default: <DIR>/<identification.ledger_name>)")
	cmd.Flags().BoolVar(&fromNames, "from-names", false, "Read species from conventional file names without a ledger")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show planned moves without touching files")
	cmd.Flags().BoolVar(&includeUnidentified, "include-unidentified", false, "Also group images recorded as unidentified")
	return cmd
}

// groupSource picks the species source for group. An explicit or default
// ledger wins; file names alone are used only when asked for.
func groupSource(cfg *config.Config, dir, ledgerPath string, fromNames bool) (organizer.SpeciesSource, error) {
	path := strings.TrimSpace(ledgerPath)
	explicit := path != ""
	if !explicit {
		path = cfg.LedgerPath(dir)
	}
	led, err := ledger.Load(path)
	switch {
	case err == nil:
		return organizer.LedgerSource{Ledger: led}, nil
	case errors.Is(err, services.ErrNotFound) && !explicit && fromNames:
		return organizer.NameSource{}, nil
	case errors.Is(err, services.ErrNotFound) && !explicit:
		return nil, services.Wrap(services.ErrNotFound, "cli", "group",
			fmt.Sprintf("no ledger at %s; pass --ledger, or --from-names to trust file names", path), nil)
	default:
		return nil, err
	}
}

func renderOrganizerReport(cmd *cobra.Command, ctx *commandContext, report *organizer.Report, runErr error) error {
	if report == nil {
		return runErr
	}
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
		return runErr
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	title := strings.ToUpper(report.Operation[:1]) + report.Operation[1:]
	if report.DryRun {
		title += " (dry run)"
	}
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}

	rows := make([][]string, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		rows = append(rows, []string{o.Filename, o.Target, colorizeKind(outcomeKind(o.Status), string(o.Status), colorize), o.Detail})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"File", "Target", "Status", "Detail"}, rows, nil))
	}
	printOutcomeCounts(out, report)

	if runErr != nil {
		return runErr
	}
	if report.Count(organizer.StatusFailed) > 0 {
		return errors.New(report.Operation + " finished with failures")
	}
	return nil
}

func printOutcomeCounts(out io.Writer, report *organizer.Report) {
	summary := report.Summary()
	order := []organizer.Status{
		organizer.StatusRenamed,
		organizer.StatusMoved,
		organizer.StatusAlreadyRenamed,
		organizer.StatusInPlace,
		organizer.StatusUnmatched,
		organizer.StatusUngrouped,
		organizer.StatusUnidentified,
		organizer.StatusConflict,
		organizer.StatusFailed,
	}
	parts := make([]string, 0, len(order))
	for _, status := range order {
		if n := summary[status]; n > 0 {
			parts = append(parts, string(status)+"="+strconv.Itoa(n))
		}
	}
	if len(parts) == 0 {
		fmt.Fprintln(out, "No image files found")
		return
	}
	fmt.Fprintln(out, strings.Join(parts, " "))
}

func outcomeKind(status organizer.Status) statusKind {
	switch status {
	case organizer.StatusRenamed, organizer.StatusMoved:
		return statusOK
	case organizer.StatusConflict, organizer.StatusFailed:
		return statusError
	case organizer.StatusUnmatched, organizer.StatusUngrouped, organizer.StatusUnidentified:
		return statusWarn
	default:
		return statusInfo
	}
}
