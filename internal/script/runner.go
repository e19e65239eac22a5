package script

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/ai"
	"github.com/v0xg/formpilot/internal/config"
	"github.com/v0xg/formpilot/internal/dispatch"
	"github.com/v0xg/formpilot/internal/driver"
	"github.com/v0xg/formpilot/internal/executor"
	"github.com/v0xg/formpilot/internal/trace"
	"github.com/v0xg/formpilot/internal/verify"
)

// Env is everything one session needs besides the step file
type Env struct {
	Page    driver.Page
	Session config.Session
	// Provider backs the semantic resolver; nil runs heuristics only.
	Provider    ai.Provider
	AIMaxTokens int
	// Trace, when set, receives a frame after every step.
	Trace  *trace.Recorder
	Logger *zap.Logger
}

// Result is the outcome of one step
type Result struct {
	Index   int
	Step    Step
	Outcome dispatch.Outcome
	Err     error
}

// Report summarises a run
type Report struct {
	Script    string
	Results   []Result
	Succeeded int
	Elapsed   time.Duration
}

// Runner executes step files on one page, one step at a time
type Runner struct {
	dispatcher *dispatch.Dispatcher
	trace      *trace.Recorder
	log        *zap.Logger
}

// NewRunner wires the executor, verifier, resolver and dispatcher for env
func NewRunner(env Env) *Runner {
	log := env.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := env.Session

	var observer executor.Observer
	if env.Trace != nil {
		observer = env.Trace.Observe
	}
	exec := executor.New(executor.NewHumanizer(s.HumanizeLevel, s.Seed, nil), executor.Options{
		AutoWaitVisible: s.AutoWaitVisible,
		Observer:        observer,
		Logger:          log,
	})

	opts := dispatch.Options{
		Executor: exec,
		Verifier: verify.New(verify.Options{
			Timeout:  s.VerifyTimeout,
			Interval: s.VerifyInterval,
			Logger:   log,
		}),
		TacticTimeout:      s.TacticTimeout,
		SemanticTimeout:    s.SemanticTimeout,
		NetworkIdleTimeout: s.NetworkIdleTimeout,
		DeepThink:          s.DeepThink,
		Logger:             log,
	}
	if env.Provider != nil {
		opts.Resolver = ai.NewResolver(env.Provider, env.Page, ai.Options{
			Executor:  exec,
			MaxTokens: env.AIMaxTokens,
			Logger:    log.Named("ai"),
		})
	}

	return &Runner{
		dispatcher: dispatch.New(env.Page, opts),
		trace:      env.Trace,
		log:        log,
	}
}

// Run executes the steps in order. Tap, Select, WaitFor and Scroll steps
// that find nothing are recorded and skipped; the run stops at the first
// step that returns an error (an exhausted Input, a closed page or a
// cancelled context).
func (r *Runner) Run(ctx context.Context, s *Script) (Report, error) {
	start := time.Now()
	report := Report{Script: s.Name}

	for i, st := range s.Steps {
		log := r.log.With(zap.Int("step", i+1), zap.Int("of", len(s.Steps)))
		in, err := st.Intent()
		if err != nil {
			return r.finish(report, start), fmt.Errorf("step %d: %w", i+1, err)
		}

		out, err := r.dispatcher.Dispatch(ctx, in)
		report.Results = append(report.Results, Result{Index: i + 1, Step: st, Outcome: out, Err: err})
		if r.trace != nil {
			r.trace.Capture(ctx, st.String(), out.Succeeded)
		}
		if err != nil {
			log.Error("step failed", zap.Stringer("intent", in), zap.Error(err))
			return r.finish(report, start), fmt.Errorf("step %d (%s): %w", i+1, st, err)
		}
		if out.Succeeded {
			report.Succeeded++
		} else {
			log.Warn("step skipped", zap.Stringer("intent", in), zap.Int("attempts", len(out.Attempts)))
		}

		if st.Wait > 0 {
			if err := executor.SleepWithContext(ctx, st.Wait); err != nil {
				return r.finish(report, start), err
			}
		}
	}

	report = r.finish(report, start)
	r.log.Info("script finished",
		zap.String("script", s.Name),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("steps", len(s.Steps)),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

func (r *Runner) finish(report Report, start time.Time) Report {
	report.Elapsed = time.Since(start)
	return report
}
