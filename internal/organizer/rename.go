package organizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"flora/internal/config"
	"flora/internal/ledger"
	"flora/internal/logging"
	"flora/internal/notifications"
	"flora/internal/services"
)

// Renamer embeds prefix and species into file names.
type Renamer struct {
	opts options
}

// NewRenamer builds a Renamer using the naming policy from cfg.
func NewRenamer(cfg *config.Config, opts ...Option) *Renamer {
	return &Renamer{opts: newOptions(cfg, "rename", opts)}
}

// Apply renames every image file in dir that has a ledger row. The prefix is
// validated before any file is touched. Per-file problems are recorded in the
// report; cancellation stops the pass between files and returns the context
// error with the partial report.
func (r *Renamer) Apply(ctx context.Context, led *ledger.Ledger, dir, prefix string) (*Report, error) {
	prefix, err := ValidatePrefix(prefix)
	if err != nil {
		return nil, err
	}
	if led == nil {
		return nil, services.Wrap(services.ErrValidation, "organizer", "rename", "a ledger is required", nil)
	}
	images, err := r.opts.scan(dir)
	if err != nil {
		return nil, err
	}

	ctx = services.WithRunID(ctx, uuid.NewString())
	ctx = services.WithOperation(ctx, "rename")
	logger := logging.WithContext(ctx, r.opts.logger)
	logger.Info("rename started",
		logging.String("dir", dir),
		logging.String("prefix", prefix),
		logging.Int("images", len(images)),
		logging.Bool("dry_run", r.opts.dryRun),
	)

	report := &Report{Operation: "rename", Dir: dir, DryRun: r.opts.dryRun, Outcomes: []Outcome{}}
	present := make(map[string]bool, len(images))
	for _, img := range images {
		present[strings.ToLower(img.Name)] = true
	}

	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome := r.renameOne(img.Path, img.Name, led, prefix, present)
		report.add(outcome)
		switch outcome.Status {
		case StatusConflict, StatusFailed:
			logging.WarnWithContext(logger, "rename skipped", "rename_"+string(outcome.Status),
				logging.String(logging.FieldImage, outcome.Filename),
				logging.String("target", outcome.Target),
				logging.String("detail", outcome.Detail),
				logging.String(logging.FieldErrorHint, "resolve the existing target file and rerun rename"),
				logging.String(logging.FieldImpact, "file keeps its current name"),
			)
		case StatusRenamed:
			logger.Debug("file renamed",
				logging.String(logging.FieldImage, outcome.Filename),
				logging.String("target", outcome.Target),
			)
		}
	}

	logger.Info("rename finished",
		logging.Int("renamed", report.Count(StatusRenamed)),
		logging.Int("already_renamed", report.Count(StatusAlreadyRenamed)),
		logging.Int("unmatched", report.Count(StatusUnmatched)),
		logging.Int("unidentified", report.Count(StatusUnidentified)),
		logging.Int("conflicts", report.Count(StatusConflict)),
	)
	r.opts.notify(ctx, logger, notifications.EventRenameCompleted, notifications.Payload{
		"dir":       dir,
		"renamed":   report.Count(StatusRenamed),
		"conflicts": report.Count(StatusConflict),
	})
	return report, nil
}

// renameOne decides and applies the outcome for a single file. present holds
// the lowercase names of files in the directory and is updated as renames
// are planned so dry-run detects collisions within the batch.
func (r *Renamer) renameOne(path, name string, led *ledger.Ledger, prefix string, present map[string]bool) Outcome {
	parsed, conformant := ParseName(name)
	confirmed := conformant && parsed.ConfirmedBy(led)
	row, ok := led.Lookup(name)
	if !ok {
		if confirmed {
			return Outcome{Filename: name, Species: parsed.Species, Status: StatusAlreadyRenamed}
		}
		return Outcome{Filename: name, Status: StatusUnmatched, Detail: "no ledger row"}
	}
	if row.Unidentified() && !r.opts.includeUnidentified {
		return Outcome{Filename: name, Species: row.Species, Status: StatusUnidentified, Detail: "unidentified rows are excluded"}
	}

	target := FormatName(prefix, row.Species, name)
	if confirmed && parsed.Prefix == prefix {
		// Re-identified after an earlier rename: swap the species, keep the stem.
		target = formatFromStem(prefix, row.Species, parsed.Stem, parsed.Ext)
	}
	outcome := Outcome{Filename: name, Target: target, Species: row.Species}
	if target == name {
		outcome.Status = StatusAlreadyRenamed
		return outcome
	}

	targetPath := filepath.Join(filepath.Dir(path), target)
	if conflict, detail := targetTaken(path, targetPath, present[strings.ToLower(target)] && !strings.EqualFold(target, name)); conflict {
		outcome.Status = StatusConflict
		outcome.Detail = services.Wrap(services.ErrRenameConflict, "organizer", "rename", detail, nil).Error()
		return outcome
	}

	if !r.opts.dryRun {
		if err := os.Rename(path, targetPath); err != nil {
			outcome.Status = StatusFailed
			outcome.Detail = err.Error()
			return outcome
		}
	}
	delete(present, strings.ToLower(name))
	present[strings.ToLower(target)] = true
	outcome.Status = StatusRenamed
	return outcome
}

// targetTaken reports whether targetPath is occupied by a file other than
// src. planned marks a target claimed earlier in the same batch.
func targetTaken(src, targetPath string, planned bool) (bool, string) {
	info, err := os.Lstat(targetPath)
	if errors.Is(err, os.ErrNotExist) {
		if planned {
			return true, fmt.Sprintf("%s is claimed by another file in this batch", filepath.Base(targetPath))
		}
		return false, ""
	}
	if err != nil {
		return true, fmt.Sprintf("inspect %s: %v", filepath.Base(targetPath), err)
	}
	if srcInfo, err := os.Lstat(src); err == nil && os.SameFile(srcInfo, info) {
		return false, ""
	}
	return true, fmt.Sprintf("%s already exists", filepath.Base(targetPath))
}
