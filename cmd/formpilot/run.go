package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/v0xg/formpilot/internal/ai"
	"github.com/v0xg/formpilot/internal/config"
	"github.com/v0xg/formpilot/internal/crawler"
	"github.com/v0xg/formpilot/internal/observability"
	"github.com/v0xg/formpilot/internal/script"
	"github.com/v0xg/formpilot/internal/trace"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <steps.yaml>",
		Short: "Run one step file in a fresh browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := observability.NewStderrLogger(cfg.Logger)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			report, err := runFile(ctx, cfg, args[0], url, traceOut, log)
			printReport(report)
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Start URL (overrides the step file)")
	cmd.Flags().StringVar(&traceOut, "trace", "", "Write an annotated GIF of the run to this file")
	return cmd
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <steps.yaml>...",
		Short: "Run several step files, one browser each",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := observability.NewStderrLogger(cfg.Logger)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			var (
				mu     sync.Mutex
				failed []string
			)
			// Files fail independently; the group only bounds concurrency.
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(parallel)
			for _, path := range args {
				path := path
				g.Go(func() error {
					out := ""
					if traceDir != "" {
						base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
						out = filepath.Join(traceDir, base+".gif")
					}
					report, err := runFile(gctx, cfg, path, "", out, log)
					mu.Lock()
					defer mu.Unlock()
					printReport(report)
					if err != nil {
						log.Error("step file failed", zap.String("file", path), zap.Error(err))
						failed = append(failed, path)
						if errors.Is(err, context.Canceled) {
							return err
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d step files failed: %s", len(failed), len(args), strings.Join(failed, ", "))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 2, "Browsers to run at once")
	cmd.Flags().StringVar(&traceDir, "trace-dir", "", "Write one annotated GIF per step file into this directory")
	return cmd
}

// runFile executes one step file in its own browser session
func runFile(ctx context.Context, cfg *config.Config, path, startURL, gifPath string, log *zap.Logger) (script.Report, error) {
	log = log.With(zap.String("session", uuid.NewString()), zap.String("file", path))

	s, err := script.Load(path)
	if err != nil {
		return script.Report{Script: path}, err
	}
	if startURL != "" {
		s.URL = startURL
	}
	if s.URL == "" {
		return script.Report{Script: s.Name}, fmt.Errorf("%s: no url in step file or --url", path)
	}

	p, err := ai.NewProvider(cfg.AI)
	switch {
	case errors.Is(err, ai.ErrNoProvider):
		log.Info("no AI provider configured, using heuristics only")
		p = nil
	case err != nil:
		return script.Report{Script: s.Name}, fmt.Errorf("AI provider init failed: %w", err)
	}

	log.Info("launching browser", zap.String("url", s.URL), zap.String("driver", cfg.Browser.Driver))
	browser, err := crawler.Launch(ctx, s.URL, crawler.Options{
		Browser:     cfg.Browser,
		Stealth:     cfg.Session.Stealth,
		IdleTimeout: cfg.Session.NetworkIdleTimeout,
		Logger:      log.Named("browser"),
	})
	if err != nil {
		return script.Report{Script: s.Name}, fmt.Errorf("launch failed: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Warn("browser close failed", zap.Error(err))
		}
	}()

	var rec *trace.Recorder
	if gifPath != "" {
		rec = trace.NewRecorder(browser.Page(), log.Named("trace"))
		rec.Capture(ctx, "start", true)
	}

	runner := script.NewRunner(script.Env{
		Page:        browser.Page(),
		Session:     cfg.Session,
		Provider:    p,
		AIMaxTokens: cfg.AI.MaxTokens,
		Trace:       rec,
		Logger:      log,
	})
	report, runErr := runner.Run(ctx, s)

	if rec != nil {
		size, err := rec.WriteGIF(gifPath, trace.GIFOptions{})
		if err != nil {
			log.Warn("trace not written", zap.Error(err))
		} else {
			log.Info("trace written", zap.String("path", gifPath), zap.Float64("mb", float64(size)/(1024*1024)))
		}
	}
	return report, runErr
}

// printReport prints one line per step
func printReport(r script.Report) {
	if len(r.Results) == 0 {
		return
	}
	fmt.Printf("→ %s\n", r.Script)
	for _, res := range r.Results {
		mark := "✓"
		detail := res.Outcome.Strategy
		switch {
		case res.Err != nil:
			mark, detail = "✗", res.Err.Error()
		case !res.Outcome.Succeeded:
			mark, detail = "–", fmt.Sprintf("skipped after %d attempts", len(res.Outcome.Attempts))
		}
		fmt.Printf("  [%d] %s %s (%s)\n", res.Index, mark, res.Step, detail)
	}
	fmt.Printf("  %d/%d steps succeeded in %s\n", r.Succeeded, len(r.Results), r.Elapsed.Round(time.Millisecond))
}
