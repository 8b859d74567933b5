package deteval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/go-deteval/match"
	"github.com/jamesainslie/go-deteval/metrics"
)

const (
	// MAP50IoU and MAP75IoU are the fixed IoU thresholds of the mAP
	// passes. They do not follow Config.IoUThreshold or Config.Mode.
	MAP50IoU = 0.50
	MAP75IoU = 0.75
)

// Image is one evaluated image. Box order within either list does not
// affect the metrics.
type Image struct {
	ID          string
	GroundTruth []match.GroundTruth
	Predictions []match.Prediction
}

// Dataset is a set of images with unique IDs.
type Dataset struct {
	Images []Image
}

// Config selects thresholds and matching policy for one run.
type Config struct {
	IoUThreshold   float64
	ScoreThreshold float64
	Mode           match.Mode
	// ClassFilter limits evaluation to these classes. Empty keeps all.
	ClassFilter []string
}

// DefaultConfig returns IoU 0.5, score 0.5, strict matching.
func DefaultConfig() Config {
	return Config{
		IoUThreshold:   0.5,
		ScoreThreshold: 0.5,
		Mode:           match.ModeStrict,
	}
}

// Validate reports an ErrInvalidConfig for out-of-range thresholds or an
// unknown mode.
func (c Config) Validate() error {
	if !inUnitRange(c.IoUThreshold) {
		return fmt.Errorf("%w: iou threshold %v not in [0, 1]", ErrInvalidConfig, c.IoUThreshold)
	}
	if !inUnitRange(c.ScoreThreshold) {
		return fmt.Errorf("%w: score threshold %v not in [0, 1]", ErrInvalidConfig, c.ScoreThreshold)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: unknown matching mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

// params builds matcher parameters at the given IoU threshold. The filter
// set is built fresh so callers cannot observe or mutate it.
func (c Config) params(iou float64) match.Params {
	p := match.Params{
		IoUThreshold:   iou,
		ScoreThreshold: c.ScoreThreshold,
		Mode:           c.Mode,
	}
	if len(c.ClassFilter) > 0 {
		p.ClassFilter = make(map[string]struct{}, len(c.ClassFilter))
		for _, name := range c.ClassFilter {
			p.ClassFilter[name] = struct{}{}
		}
	}
	return p
}

// apParams builds parameters for an mAP pass. These always match strictly
// so that AP gates on both class and the fixed IoU, whatever cfg.Mode is.
func (c Config) apParams(iou float64) match.Params {
	p := c.params(iou)
	p.Mode = match.ModeStrict
	return p
}

// Result is the immutable output of a run.
type Result struct {
	Metrics metrics.Metrics
	// ImageIDs lists image IDs in dataset order.
	ImageIDs []string
	// PerImage holds each image's results at Config.IoUThreshold.
	PerImage map[string][]match.Result
}

// Evaluator runs evaluations. It is safe for concurrent use.
type Evaluator struct {
	workers int
	classes []string
	logger  *slog.Logger
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Evaluator{
		workers: o.workers,
		classes: lo.Uniq(o.classes),
		logger:  o.logger,
	}
}

// Run evaluates ds under cfg with default options.
func Run(ctx context.Context, ds Dataset, cfg Config) (*Result, error) {
	return New().Run(ctx, ds, cfg)
}

type imageOutcome struct {
	results    []match.Result
	confusion  *metrics.Tally
	at50       *metrics.Tally
	at75       *metrics.Tally
	degenerate int
}

// Run evaluates ds under cfg. The same inputs always produce the same
// Result regardless of worker count. ctx is checked between images.
func (e *Evaluator) Run(ctx context.Context, ds Dataset, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(ds.Images) == 0 {
		return nil, ErrEmptyDataset
	}

	ids := make([]string, len(ds.Images))
	seen := make(map[string]struct{}, len(ds.Images))
	for i, img := range ds.Images {
		if _, dup := seen[img.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateImage, img.ID)
		}
		seen[img.ID] = struct{}{}
		ids[i] = img.ID
	}

	e.logger.Debug("evaluation started",
		"images", len(ds.Images),
		"workers", e.workers,
		"mode", cfg.Mode,
		"iou", cfg.IoUThreshold,
		"score", cfg.ScoreThreshold,
	)

	base := cfg.params(cfg.IoUThreshold)
	p50 := cfg.apParams(MAP50IoU)
	p75 := cfg.apParams(MAP75IoU)

	outcomes := make([]imageOutcome, len(ds.Images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range ds.Images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = evaluateImage(ds.Images[i], base, p50, p75)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	confusion := metrics.NewTally()
	at50 := metrics.NewTally()
	at75 := metrics.NewTally()
	perImage := make(map[string][]match.Result, len(outcomes))
	degenerate := 0
	for i, out := range outcomes {
		confusion.Merge(out.confusion)
		at50.Merge(out.at50)
		at75.Merge(out.at75)
		perImage[ids[i]] = out.results
		degenerate += out.degenerate
	}
	if degenerate > 0 {
		e.logger.Debug("degenerate boxes can never match", "count", degenerate)
	}

	m := metrics.Summarize(confusion, at50, at75, e.universe(cfg, confusion))

	e.logger.Debug("evaluation complete",
		"tp", m.TruePositives,
		"fp", m.FalsePositives,
		"fn", m.FalseNegatives,
		"precision", m.Precision,
		"recall", m.Recall,
		"map50", m.MAP50,
		"map75", m.MAP75,
	)

	return &Result{
		Metrics:  m,
		ImageIDs: ids,
		PerImage: perImage,
	}, nil
}

func evaluateImage(img Image, base, p50, p75 match.Params) imageOutcome {
	out := imageOutcome{
		results:   match.Match(img.GroundTruth, img.Predictions, base),
		confusion: metrics.NewTally(),
		at50:      metrics.NewTally(),
		at75:      metrics.NewTally(),
	}
	out.confusion.Add(out.results)
	out.at50.Add(match.Match(img.GroundTruth, img.Predictions, p50))
	out.at75.Add(match.Match(img.GroundTruth, img.Predictions, p75))

	out.degenerate += lo.CountBy(img.GroundTruth, func(gt match.GroundTruth) bool {
		return gt.Degenerate()
	})
	out.degenerate += lo.CountBy(img.Predictions, func(p match.Prediction) bool {
		return p.Degenerate()
	})
	return out
}

// universe is the class filter when one is set, otherwise the configured
// vocabulary plus every class the run observed.
func (e *Evaluator) universe(cfg Config, observed *metrics.Tally) []string {
	if len(cfg.ClassFilter) > 0 {
		return lo.Uniq(cfg.ClassFilter)
	}
	return lo.Union(e.classes, observed.Classes())
}
