// Command threadpool-demo runs the process-wide thread pool against a small
// synthetic workload and exports its metrics.
//
// Usage:
//
//	threadpool-demo [--config pool.yaml] [--workers 4] [--metrics-addr :2112]
//
// Settings are read from the config file, then THREADPOOL_* environment
// variables, then flags.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "threadpool-demo",
		Usage: "run a synthetic workload on the shared thread pool",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON config file",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "number of workers (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "zap log level (overrides config)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "listen address of /metrics (overrides config)",
			},
			&cli.IntFlag{
				Name:  "tasks",
				Usage: "number of immediate tasks to post",
				Value: 16,
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "delay of the delayed tasks",
				Value: 200 * time.Millisecond,
			},
			&cli.DurationFlag{
				Name:  "linger",
				Usage: "how long to keep serving after the workload finishes",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:  "otel-dump",
				Usage: "also record through OpenTelemetry and log the collected metrics on exit",
			},
		},
		Action: run,
	}
}
