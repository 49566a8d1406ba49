package organizer

import (
	"context"
	"log/slog"

	"flora/internal/config"
	"flora/internal/fileutil"
	"flora/internal/identification"
	"flora/internal/logging"
	"flora/internal/notifications"
)

// Status is the per-file result of a rename or group pass.
type Status string

const (
	StatusRenamed        Status = "renamed"
	StatusAlreadyRenamed Status = "already_renamed"
	StatusMoved          Status = "moved"
	StatusInPlace        Status = "in_place"
	StatusUnmatched      Status = "unmatched"
	StatusUngrouped      Status = "ungrouped"
	StatusUnidentified   Status = "unidentified"
	StatusConflict       Status = "conflict"
	StatusFailed         Status = "failed"
)

// Outcome describes what happened, or would happen under dry-run, to one file.
type Outcome struct {
	Filename string `json:"filename"`
	Target   string `json:"target,omitempty"`
	Species  string `json:"species,omitempty"`
	Status   Status `json:"status"`
	Detail   string `json:"detail,omitempty"`
}

// Report collects the outcomes of one pass in file order.
type Report struct {
	Operation string    `json:"operation"`
	Dir       string    `json:"dir"`
	DryRun    bool      `json:"dry_run"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Count returns the number of outcomes with status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Summary returns outcome counts keyed by status.
func (r *Report) Summary() map[Status]int {
	out := make(map[Status]int)
	for _, o := range r.Outcomes {
		out[o.Status]++
	}
	return out
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Option customizes a Renamer or Grouper.
type Option func(*options)

type options struct {
	logger              *slog.Logger
	notifier            notifications.Service
	dryRun              bool
	includeUnidentified bool
	isImage             func(string) bool
	move                func(src, dst string) error
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithNotifier sets the notification service used for run summaries.
func WithNotifier(notifier notifications.Service) Option {
	return func(o *options) { o.notifier = notifier }
}

// WithDryRun computes outcomes without touching the file system.
func WithDryRun(dryRun bool) Option {
	return func(o *options) { o.dryRun = dryRun }
}

// WithIncludeUnidentified overrides naming.include_unidentified.
func WithIncludeUnidentified(include bool) Option {
	return func(o *options) { o.includeUnidentified = include }
}

func newOptions(cfg *config.Config, component string, opts []Option) options {
	o := options{move: fileutil.MoveFile}
	if cfg != nil {
		o.includeUnidentified = cfg.Naming.IncludeUnidentified
		o.isImage = cfg.IsImage
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.NewComponentLogger(o.logger, component)
	if o.notifier == nil {
		o.notifier = notifications.NewService(nil)
	}
	return o
}

func (o options) scan(dir string) ([]identification.ImageFile, error) {
	return identification.Scan(dir, o.isImage)
}

func (o options) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if o.dryRun {
		return
	}
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "run summary was not pushed"),
		)
	}
}
