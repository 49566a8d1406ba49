package identification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"flora/internal/config"
	"flora/internal/ledger"
	"flora/internal/logging"
	"flora/internal/notifications"
	"flora/internal/services"
	"flora/internal/services/plantnet"
	"flora/internal/species"
)

// Request names the directory to scan and the ledger to update. An empty
// LedgerPath resolves to the configured ledger name inside Dir.
type Request struct {
	Dir        string
	LedgerPath string
}

// Skip records an image that produced no ledger row.
type Skip struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// Report summarizes one run.
type Report struct {
	RunID        string         `json:"run_id"`
	Dir          string         `json:"dir"`
	LedgerPath   string         `json:"ledger_path"`
	Total        int            `json:"total"`
	Identified   int            `json:"identified"`
	Unidentified int            `json:"unidentified"`
	Skipped      []Skip         `json:"skipped"`
	Cancelled    bool           `json:"cancelled"`
	Aborted      bool           `json:"aborted"`
	Duration     time.Duration  `json:"duration"`
	Ledger       *ledger.Ledger `json:"-"`
}

// Processed returns the number of images that produced a ledger row.
func (r *Report) Processed() int {
	return r.Identified + r.Unidentified
}

// Pipeline identifies images and merges the results into a ledger.
type Pipeline struct {
	cfg        *config.Config
	recognizer plantnet.Recognizer
	logger     *slog.Logger
	notifier   notifications.Service
	now        func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithNotifier sets the notification service used for run summaries.
func WithNotifier(notifier notifications.Service) Option {
	return func(p *Pipeline) {
		p.notifier = notifier
	}
}

// NewPipeline builds a pipeline around recognizer.
func NewPipeline(cfg *config.Config, recognizer plantnet.Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		recognizer: recognizer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "identification")
	if p.notifier == nil {
		p.notifier = notifications.NewService(nil)
	}
	return p
}

// Run scans req.Dir and identifies every image in it. Setup failures are
// returned before any image is submitted. Once the scan starts a report is
// always returned, together with ErrAuth when the service rejected the
// credential or the context error when the run was cancelled.
func (p *Pipeline) Run(ctx context.Context, req Request, observe Observer) (*Report, error) {
	if p.recognizer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "identification", "run", "no recognizer configured", nil)
	}
	if observe == nil {
		observe = func(Event) {}
	}

	images, err := Scan(req.Dir, p.cfg.IsImage)
	if err != nil {
		return nil, err
	}
	ledgerPath := strings.TrimSpace(req.LedgerPath)
	if ledgerPath == "" {
		ledgerPath = p.cfg.LedgerPath(req.Dir)
	}

	lock, err := ledger.Acquire(ledgerPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release()
	}()

	led, err := ledger.LoadOrNew(ledgerPath)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithOperation(ctx, "identify")
	logger := logging.WithContext(ctx, p.logger)

	start := p.now()
	report := &Report{
		RunID:      runID,
		Dir:        req.Dir,
		LedgerPath: ledgerPath,
		Total:      len(images),
		Skipped:    []Skip{},
		Ledger:     led,
	}
	emit := func(ev Event) {
		ev.RunID = runID
		ev.Total = len(images)
		ev.Time = p.now()
		observe(ev)
	}

	logger.Info("identification started",
		logging.String("dir", req.Dir),
		logging.String("ledger", ledgerPath),
		logging.Int("images", len(images)),
		logging.Int("existing_rows", led.Len()),
	)
	emit(Event{Type: EventStarted})

	var runErr error
	for i, img := range images {
		if ctx.Err() != nil {
			report.Cancelled = true
			runErr = ctx.Err()
			break
		}
		index := i + 1
		imgCtx := services.WithImage(ctx, img.Name)

		row, skip, err := p.identifyOne(imgCtx, img)
		if errors.Is(err, services.ErrAuth) {
			report.Aborted = true
			runErr = err
			for j := i; j < len(images); j++ {
				s := Skip{Filename: images[j].Name, Reason: services.Reason(err)}
				if j == i {
					s.Detail = err.Error()
				}
				report.Skipped = append(report.Skipped, s)
				emit(Event{Type: EventSkipped, Index: j + 1, Filename: s.Filename, Reason: s.Reason, Detail: s.Detail})
			}
			logging.ErrorWithContext(logger, "identification aborted", "identification_auth_failed",
				logging.String(logging.FieldImage, img.Name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check plantnet.api_key or PLANTNET_API_KEY"),
			)
			break
		}
		if skip != nil {
			report.Skipped = append(report.Skipped, *skip)
			emit(Event{Type: EventSkipped, Index: index, Filename: img.Name, Reason: skip.Reason, Detail: skip.Detail})
			continue
		}

		led.Upsert(row)
		if row.Unidentified() {
			report.Unidentified++
			emit(Event{Type: EventUnidentified, Index: index, Filename: img.Name, Species: row.Species})
		} else {
			report.Identified++
			emit(Event{Type: EventIdentified, Index: index, Filename: img.Name, Species: row.Species, Confidence: row.Confidence})
		}
	}

	if err := led.Save(ledgerPath); err != nil {
		return report, fmt.Errorf("save ledger: %w", err)
	}
	report.Duration = p.now().Sub(start)

	switch {
	case report.Aborted:
		emit(Event{Type: EventAborted, Reason: services.Reason(runErr), Detail: runErr.Error()})
		p.notify(ctx, logger, notifications.EventError, notifications.Payload{
			"context": "identify " + req.Dir,
			"error":   runErr.Error(),
		})
	case report.Cancelled:
		emit(Event{Type: EventCancelled})
		logger.Info("identification cancelled",
			logging.Int("processed", report.Processed()),
			logging.Int("remaining", report.Total-report.Processed()-len(report.Skipped)),
		)
	default:
		emit(Event{Type: EventCompleted})
		p.notify(ctx, logger, notifications.EventIdentificationCompleted, notifications.Payload{
			"dir":          req.Dir,
			"identified":   report.Identified,
			"unidentified": report.Unidentified,
			"skipped":      len(report.Skipped),
		})
	}

	logger.Info("identification finished",
		logging.Int("identified", report.Identified),
		logging.Int("unidentified", report.Unidentified),
		logging.Int("skipped", len(report.Skipped)),
		logging.Duration("duration", report.Duration),
	)
	return report, runErr
}

// identifyOne returns either a ledger row, a skip record, or an ErrAuth error.
func (p *Pipeline) identifyOne(ctx context.Context, img ImageFile) (ledger.Row, *Skip, error) {
	logger := logging.WithContext(ctx, p.logger)

	data, err := os.ReadFile(img.Path)
	if err != nil {
		logging.WarnWithContext(logger, "image unreadable; skipping", "identification_read_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check file permissions"),
			logging.String(logging.FieldImpact, "image has no ledger row"),
		)
		return ledger.Row{}, &Skip{Filename: img.Name, Reason: "read", Detail: err.Error()}, nil
	}

	// Cancellation is observed between images only.
	results, err := p.recognizer.Identify(context.WithoutCancel(ctx), img.Name, data)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrAuth):
		return ledger.Row{}, nil, err
	case errors.Is(err, services.ErrUnsupportedFormat):
		logger.Info("image format rejected; recording as unidentified", logging.Error(err))
		return sentinelRow(img.Name), nil, nil
	default:
		logging.WarnWithContext(logger, "identification failed; skipping image", "identification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "rerun identify later; the ledger keeps earlier rows"),
			logging.String(logging.FieldImpact, "image has no ledger row"),
		)
		return ledger.Row{}, &Skip{Filename: img.Name, Reason: services.Reason(err), Detail: err.Error()}, nil
	}

	row := p.accept(img.Name, results)
	logger.Debug("image identified",
		logging.String("species", row.Species),
		logging.Float64("confidence", row.Confidence),
		logging.Int("candidates", len(results)),
	)
	return row, nil, nil
}

func (p *Pipeline) accept(filename string, results []species.Result) ledger.Row {
	var best *species.Result
	for i := range results {
		if results[i].Accepted() {
			best = &results[i]
			break
		}
	}
	if best == nil && len(results) > 0 {
		best = &results[0]
	}
	if best == nil || best.Confidence < p.cfg.Identification.MinConfidence {
		return sentinelRow(filename)
	}
	name := species.Normalize(best.Species)
	if name == "" {
		return sentinelRow(filename)
	}
	return ledger.Row{Filename: filename, Species: name, Confidence: best.Confidence}
}

func sentinelRow(filename string) ledger.Row {
	return ledger.Row{Filename: filename, Species: species.Unidentified, Confidence: 0}
}

func (p *Pipeline) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := p.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "run summary was not pushed"),
		)
	}
}
