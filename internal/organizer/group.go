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
	"flora/internal/species"
)

// SpeciesSource resolves the species of a file by name.
type SpeciesSource interface {
	SpeciesFor(filename string) (string, bool)
}

// NameSource reads the species from the naming convention alone. Use it
// only for directories whose conventional names are known to come from
// rename, since nothing confirms the parsed species.
type NameSource struct{}

// SpeciesFor implements SpeciesSource.
func (NameSource) SpeciesFor(filename string) (string, bool) {
	parsed, ok := ParseName(filename)
	if !ok {
		return "", false
	}
	return parsed.Species, true
}

// LedgerSource looks the file up in a ledger. A file renamed after
// identification resolves through its conventional name only when a ledger
// row confirms it.
type LedgerSource struct {
	Ledger *ledger.Ledger
}

// SpeciesFor implements SpeciesSource.
func (s LedgerSource) SpeciesFor(filename string) (string, bool) {
	if row, ok := s.Ledger.Lookup(filename); ok {
		return row.Species, true
	}
	parsed, ok := ParseName(filename)
	if !ok || !parsed.ConfirmedBy(s.Ledger) {
		return "", false
	}
	return parsed.Species, true
}

// Grouper moves files into per-species subdirectories.
type Grouper struct {
	opts options
}

// NewGrouper builds a Grouper using the naming policy from cfg.
func NewGrouper(cfg *config.Config, opts ...Option) *Grouper {
	return &Grouper{opts: newOptions(cfg, "group", opts)}
}

// Apply moves each top-level image file of dir into dir/<species>. Files whose
// species is unknown stay where they are. Files already inside the matching
// subdirectory are reported in place; nothing below the top level is moved.
func (g *Grouper) Apply(ctx context.Context, dir string, source SpeciesSource) (*Report, error) {
	if source == nil {
		return nil, services.Wrap(services.ErrValidation, "organizer", "group", "a species source is required", nil)
	}
	images, err := g.opts.scan(dir)
	if err != nil {
		return nil, err
	}

	ctx = services.WithRunID(ctx, uuid.NewString())
	ctx = services.WithOperation(ctx, "group")
	logger := logging.WithContext(ctx, g.opts.logger)
	logger.Info("group started",
		logging.String("dir", dir),
		logging.Int("images", len(images)),
		logging.Bool("dry_run", g.opts.dryRun),
	)

	report := &Report{Operation: "group", Dir: dir, DryRun: g.opts.dryRun, Outcomes: []Outcome{}}
	if err := g.collectInPlace(dir, source, report); err != nil {
		return nil, err
	}

	created := make(map[string]bool)
	claimed := make(map[string]bool)
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		outcome := g.groupOne(dir, img.Path, img.Name, source, created, claimed)
		report.add(outcome)
		switch outcome.Status {
		case StatusConflict, StatusFailed:
			logging.WarnWithContext(logger, "group skipped", "group_"+string(outcome.Status),
				logging.String(logging.FieldImage, outcome.Filename),
				logging.String("target", outcome.Target),
				logging.String("detail", outcome.Detail),
				logging.String(logging.FieldErrorHint, "resolve the existing target and rerun group"),
				logging.String(logging.FieldImpact, "file stays at the top level"),
			)
		case StatusMoved:
			logger.Debug("file grouped",
				logging.String(logging.FieldImage, outcome.Filename),
				logging.String("target", outcome.Target),
			)
		}
	}

	logger.Info("group finished",
		logging.Int("moved", report.Count(StatusMoved)),
		logging.Int("in_place", report.Count(StatusInPlace)),
		logging.Int("ungrouped", report.Count(StatusUngrouped)),
		logging.Int("unidentified", report.Count(StatusUnidentified)),
		logging.Int("conflicts", report.Count(StatusConflict)),
	)
	g.opts.notify(ctx, logger, notifications.EventGroupCompleted, notifications.Payload{
		"dir":       dir,
		"moved":     report.Count(StatusMoved),
		"ungrouped": report.Count(StatusUngrouped),
		"conflicts": report.Count(StatusConflict),
	})
	return report, nil
}

func (g *Grouper) resolve(name string, source SpeciesSource) (string, Status, string) {
	raw, ok := source.SpeciesFor(name)
	if !ok {
		return "", StatusUngrouped, "species unknown"
	}
	name = species.Normalize(raw)
	if name == "" {
		return "", StatusUngrouped, "species unknown"
	}
	if species.IsUnidentified(name) && !g.opts.includeUnidentified {
		return name, StatusUnidentified, "unidentified files are excluded"
	}
	return name, "", ""
}

func (g *Grouper) groupOne(dir, path, name string, source SpeciesSource, created, claimed map[string]bool) Outcome {
	speciesName, status, detail := g.resolve(name, source)
	if status != "" {
		return Outcome{Filename: name, Species: speciesName, Status: status, Detail: detail}
	}

	subdir := filepath.Join(dir, speciesName)
	target := filepath.Join(subdir, name)
	outcome := Outcome{Filename: name, Species: speciesName, Target: filepath.Join(speciesName, name)}

	if info, err := os.Stat(subdir); err == nil && !info.IsDir() {
		outcome.Status = StatusConflict
		outcome.Detail = services.Wrap(services.ErrGroupConflict, "organizer", "group",
			fmt.Sprintf("%s exists and is not a directory", speciesName), nil).Error()
		return outcome
	}
	key := strings.ToLower(outcome.Target)
	if _, err := os.Lstat(target); err == nil || !errors.Is(err, os.ErrNotExist) || claimed[key] {
		outcome.Status = StatusConflict
		outcome.Detail = services.Wrap(services.ErrGroupConflict, "organizer", "group",
			fmt.Sprintf("%s already exists", outcome.Target), nil).Error()
		return outcome
	}

	if !g.opts.dryRun {
		if !created[subdir] {
			if err := os.MkdirAll(subdir, 0o755); err != nil {
				outcome.Status = StatusFailed
				outcome.Detail = err.Error()
				return outcome
			}
			created[subdir] = true
		}
		if err := g.opts.move(path, target); err != nil {
			outcome.Status = StatusFailed
			outcome.Detail = err.Error()
			return outcome
		}
	}
	claimed[key] = true
	outcome.Status = StatusMoved
	return outcome
}

// collectInPlace reports image files already sitting in the subdirectory
// named after their species.
func (g *Grouper) collectInPlace(dir string, source SpeciesSource, report *Report) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return services.Wrap(services.ErrValidation, "organizer", "group", fmt.Sprintf("list %s", dir), err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files, err := g.opts.scan(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			speciesName, status, _ := g.resolve(f.Name, source)
			if speciesName != entry.Name() {
				continue
			}
			if status != "" && status != StatusUnidentified {
				continue
			}
			report.add(Outcome{
				Filename: f.Name,
				Species:  speciesName,
				Target:   filepath.Join(entry.Name(), f.Name),
				Status:   StatusInPlace,
			})
		}
	}
	return nil
}
