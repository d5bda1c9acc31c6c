package optim

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/loom-ml/loom/internal/graph"
)

// Scheduling priorities of the standard passes. Lower runs earlier.
const (
	PrioritySimplify = 10
	PriorityMerge    = 20
	PriorityFuse     = 30
	PriorityPrune    = 90
)

// DefaultMaxRounds caps fixpoint iteration when the configuration does
// not say otherwise.
const DefaultMaxRounds = 8

// Config controls pipeline scheduling.
type Config struct {
	// MaxRounds caps how many times the pass list is repeated while
	// the graph keeps changing. 0 means DefaultMaxRounds.
	MaxRounds int

	Log *logrus.Logger
}

type registration struct {
	pass     Pass
	priority int
	seq      int
}

// Pipeline runs registered passes over a graph until a full round
// changes nothing. Passes run in ascending priority; equal priorities
// run in registration order.
type Pipeline struct {
	regs []registration
	cfg  Config
}

// NewPipeline returns an empty pipeline.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Pipeline{cfg: cfg}
}

// Default returns the standard pipeline: simplify, merge, fuse, prune.
func Default(cfg Config) *Pipeline {
	p := NewPipeline(cfg)
	p.Register(PrioritySimplify, NewSimplify())
	p.Register(PriorityMerge, NewMerge())
	p.Register(PriorityFuse, NewFuse())
	p.Register(PriorityPrune, NewPrune())
	return p
}

// Register schedules a pass.
func (p *Pipeline) Register(priority int, pass Pass) {
	p.regs = append(p.regs, registration{pass: pass, priority: priority, seq: len(p.regs)})
}

// Passes returns the registered passes in scheduling order.
func (p *Pipeline) Passes() []Pass {
	ordered := p.ordered()
	out := make([]Pass, len(ordered))
	for i, reg := range ordered {
		out[i] = reg.pass
	}
	return out
}

func (p *Pipeline) ordered() []registration {
	ordered := append([]registration(nil), p.regs...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority < ordered[j].priority
		}
		return ordered[i].seq < ordered[j].seq
	})
	return ordered
}

// Run rewrites g in place, repeating the pass list until a full round
// changes nothing or the round cap is reached. The first pass failure
// aborts the run: every mutation of the run, earlier passes included,
// is unwound so the graph is exactly what it was at entry, and the
// error is returned. A feature veto surfacing from a pass and a pass
// that leaves the graph failing validation both count as failures.
func (p *Pipeline) Run(g *graph.Graph) error {
	ordered := p.ordered()
	hist := graph.NewHistory()
	if err := g.Attach(hist); err != nil {
		return err
	}
	defer g.Detach(hist)

	start := hist.Checkpoint()
	log := p.cfg.Log
	for round := 1; round <= p.cfg.MaxRounds; round++ {
		changed := false
		for _, reg := range ordered {
			did, err := reg.pass.Rewrite(g)
			if err == nil && did {
				err = g.Validate()
			}
			if err != nil {
				hist.Revert(start)
				log.WithFields(logrus.Fields{
					"pass":  reg.pass.Name(),
					"round": round,
				}).WithError(err).Error("optimization aborted")
				return errors.Wrapf(err, "pass %s", reg.pass.Name())
			}
			if did {
				changed = true
				log.WithFields(logrus.Fields{
					"pass":  reg.pass.Name(),
					"round": round,
					"nodes": g.NumLive(),
				}).Debug("pass changed graph")
			}
		}
		if !changed {
			return nil
		}
	}
	log.WithField("rounds", p.cfg.MaxRounds).Warn("optimization stopped before reaching a fixed point")
	return nil
}
