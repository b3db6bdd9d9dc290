package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/lmittmann/tint"
	"github.com/programme-lv/membench/internal/bench"
	"github.com/programme-lv/membench/internal/report"
	"github.com/programme-lv/membench/internal/strategy"
	"github.com/programme-lv/membench/internal/suite"
	"github.com/programme-lv/membench/internal/workload"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	root := &cli.Command{
		Name:  "membench",
		Usage: "compare sequential, goroutine and subprocess execution by wall time and peak RSS",
		Commands: []*cli.Command{
			runCommand(logger),
			suiteCommand(logger),
			workerCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		logger.Error("membench failed", "error", err)
		os.Exit(1)
	}
}

func measurementFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "interval",
			Usage: "peak sampler polling interval",
		},
		&cli.DurationFlag{
			Name:  "stop-timeout",
			Usage: "bounded wait for sampler shutdown",
		},
		&cli.StringFlag{
			Name:  "results-jsonl",
			Usage: "append results as JSON lines to this file",
		},
		&cli.IntFlag{
			Name:  "maxprocs",
			Usage: "override GOMAXPROCS (1 serializes goroutine execution)",
		},
	}
}

func runCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run one workload configuration under the selected strategies",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "workload",
				Aliases: []string{"w"},
				Value:   string(workload.Memory),
				Usage:   "workload kind: cpu, mem, mandelbrot or http",
			},
			&cli.IntFlag{
				Name:    "tasks",
				Aliases: []string{"n"},
				Value:   4,
				Usage:   "number of workload units per strategy",
			},
			&cli.IntFlag{
				Name:  "intensity",
				Usage: "per-unit intensity: MiB for mem, iterations for cpu, rows for mandelbrot, requests for http (0 = kind default)",
			},
			&cli.StringSliceFlag{
				Name:  "strategies",
				Usage: "strategies to measure (default: all)",
			},
			&cli.BoolFlag{
				Name:  "children",
				Usage: "aggregate child-process RSS for every strategy, not only processes",
			},
		}, measurementFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runAction(ctx, cmd, logger)
		},
	}
}

func runAction(ctx context.Context, cmd *cli.Command, logger *slog.Logger) error {
	if p := int(cmd.Int("maxprocs")); p > 0 {
		runtime.GOMAXPROCS(p)
	}

	kind := workload.Kind(cmd.String("workload"))
	intensity := int(cmd.Int("intensity"))
	if intensity == 0 {
		intensity = defaultIntensity(kind)
	}
	tasks := int(cmd.Int("tasks"))

	spec := workload.Spec{Kind: kind, Intensity: intensity}
	if err := spec.Validate(); err != nil {
		return err
	}
	if tasks <= 0 {
		return fmt.Errorf("tasks must be positive, got %d", tasks)
	}

	names, err := selectStrategies(cmd.StringSlice("strategies"))
	if err != nil {
		return err
	}

	opts := bench.Options{
		Interval:    cmd.Duration("interval"),
		StopTimeout: cmd.Duration("stop-timeout"),
		Logger:      logger,
	}
	suite.LoadEnvConfig().Apply(&opts)

	reporter, cleanup, err := buildReporter(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	specs := make([]workload.Spec, tasks)
	for i := range specs {
		specs[i] = spec
	}

	reporter.StartRun(report.NewRunInfo(kind, tasks, intensity))
	for _, name := range names {
		strat, err := strategy.New(name, strategy.Config{Logger: logger})
		if err != nil {
			return err
		}

		opts.IncludeChildren = cmd.Bool("children") || name == strategy.NameProcesses
		res, err := bench.Measure(ctx, strat, specs, opts)
		if err != nil {
			return err
		}
		reporter.Report(res)
	}
	reporter.FinishRun()
	return nil
}

func suiteCommand(logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "suite",
		Usage:     "run scenarios from a TOML suite file and check their expectations",
		ArgsUsage: "<suite.toml>",
		Flags:     measurementFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one suite file argument")
			}
			if p := int(cmd.Int("maxprocs")); p > 0 {
				runtime.GOMAXPROCS(p)
			}

			scenarios, err := suite.Parse(cmd.Args().First())
			if err != nil {
				return err
			}

			opts := bench.Options{
				Interval:    cmd.Duration("interval"),
				StopTimeout: cmd.Duration("stop-timeout"),
				Logger:      logger,
			}
			suite.LoadEnvConfig().Apply(&opts)

			reporter, cleanup, err := buildReporter(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			runner := &suite.Runner{Opts: opts, Reporter: reporter, Logger: logger}
			return runner.Run(ctx, scenarios)
		},
	}
}

// workerCommand is the child-process entry point used by the processes
// strategy: it runs exactly one workload unit and exits. The exit code is the
// only signal crossing the process boundary.
func workerCommand() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Hidden: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Required: true},
			&cli.IntFlag{Name: "intensity", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return workload.Run(workload.Spec{
				Kind:      workload.Kind(cmd.String("kind")),
				Intensity: int(cmd.Int("intensity")),
			})
		},
	}
}

func selectStrategies(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return strategy.Names(), nil
	}
	known := mapset.NewSet(strategy.Names()...)
	seen := mapset.NewSet[string]()
	var names []string
	for _, name := range requested {
		if !known.Contains(name) {
			return nil, fmt.Errorf("unknown strategy %q, valid: %v", name, strategy.Names())
		}
		if seen.Add(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

func buildReporter(cmd *cli.Command) (report.Reporter, func(), error) {
	terminal := report.NewTerminal(os.Stdout)

	path := cmd.String("results-jsonl")
	if path == "" {
		if env := suite.LoadEnvConfig(); env.ResultsPath != "" {
			path = env.ResultsPath
		}
	}
	if path == "" {
		return terminal, func() {}, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open results file: %w", err)
	}
	multi := report.Multi{terminal, report.NewJSONL(file)}
	return multi, func() { file.Close() }, nil
}

func defaultIntensity(kind workload.Kind) int {
	switch kind {
	case workload.CPU:
		return 300000
	case workload.Memory:
		return 50
	case workload.Mandelbrot:
		return 4000
	case workload.HTTPLoad:
		return 1000
	}
	return 0
}
