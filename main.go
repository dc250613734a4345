package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/scipunch/rssreader/apperr"
	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/fetcher"
	"github.com/scipunch/rssreader/fetcher/types"
	"github.com/scipunch/rssreader/filter"
	"github.com/scipunch/rssreader/logging"
	"github.com/scipunch/rssreader/pipeline"
	"github.com/scipunch/rssreader/render"
	"github.com/scipunch/rssreader/store"
)

var version = "1.0.0"

const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app()
	if err := a.RunContext(ctx, flagsFirst(a, os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "rssreader: %s\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// flagsFirst moves flags ahead of positional arguments, so that
// "rssreader URL --limit 2" parses like "rssreader --limit 2 URL".
// Everything after "--" stays positional.
func flagsFirst(a *cli.App, args []string) []string {
	if len(args) < 2 {
		return args
	}
	takesValue := make(map[string]bool)
	for _, f := range a.Flags {
		if _, ok := f.(*cli.BoolFlag); ok {
			continue
		}
		for _, name := range f.Names() {
			takesValue[name] = true
		}
	}

	flags := []string{args[0]}
	var positional []string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if arg == "--" {
			positional = append(positional, rest[i:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			positional = append(positional, arg)
			continue
		}
		flags = append(flags, arg)
		name := strings.TrimLeft(arg, "-")
		if !strings.Contains(name, "=") && takesValue[name] && i+1 < len(rest) {
			i++
			flags = append(flags, rest[i])
		}
	}
	return append(flags, positional...)
}

func exitCode(err error) int {
	if errors.Is(err, apperr.ErrInvalidArgument) {
		return exitUsage
	}
	return exitFailure
}

func app() *cli.App {
	return &cli.App{
		Name:            "rssreader",
		Usage:           "Pure Go command-line RSS reader",
		UsageText:       "rssreader [flags] [source]",
		Version:         version,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "limit news topics if this parameter is provided",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print result as JSON in stdout",
			},
			&cli.StringFlag{
				Name:  "date",
				Usage: "show stored news published on `YYYY-MM-DD` (YYYYMMDD also accepted)",
			},
			&cli.StringFlag{
				Name:      "to_html",
				Usage:     "write the news as an HTML document to `PATH`",
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:      "to_fb2",
				Usage:     "write the news as a FictionBook 2 e-book to `PATH`",
				TakesFile: true,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "output verbose status messages",
			},
			&cli.StringFlag{
				Name:      "config",
				Usage:     "path to a TOML config",
				Value:     config.DefaultPath(),
				EnvVars:   []string{"RSSREADER_CONFIG"},
				TakesFile: true,
			},
			&cli.BoolFlag{
				Name:  "clean",
				Usage: "remove every stored news item and exit",
			},
		},
		OnUsageError: func(_ *cli.Context, err error, _ bool) error {
			return apperr.InvalidArgument("%s", err)
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	if c.NArg() > 1 {
		return apperr.InvalidArgument("expected at most one source, got %d", c.NArg())
	}

	req := pipeline.Request{
		Source:   normalizeSource(c.Args().First()),
		Limit:    c.Int("limit"),
		JSON:     c.Bool("json"),
		HTMLPath: c.String("to_html"),
		FB2Path:  c.String("to_fb2"),
	}
	if raw := c.String("date"); raw != "" {
		day, err := pipeline.ParseDate(raw)
		if err != nil {
			return err
		}
		req.Date = &day
	}
	clean := c.Bool("clean")
	if !clean {
		if err := req.Validate(); err != nil {
			cli.ShowAppHelp(c)
			return err
		}
	}

	conf, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}

	log, sync, err := logging.New(conf.Log, c.Bool("verbose"))
	if err != nil {
		return fmt.Errorf("failed to initialize logging with %w", err)
	}
	defer sync()

	ctx := c.Context

	opts := []store.Option{store.WithLogger(log)}
	if req.Source == "" && !clean {
		opts = append(opts, store.WithReadOnly())
	}
	st, err := store.Open(ctx, conf.DatabasePath, opts...)
	if err != nil {
		return err
	}
	defer st.Close()

	if clean {
		if err := st.Clear(ctx); err != nil {
			return err
		}
		log.Infow("store cleared", "path", conf.DatabasePath)
		return nil
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		log.Warnw("failed to get store stats", "error", err)
	} else {
		log.Debugw("store opened", "sources", stats.Sources, "items", stats.Items, "oldest", stats.OldestEntry)
	}

	var f types.FeedFetcher
	if req.Source != "" {
		f, err = fetcher.New(conf.Fetch)
		if err != nil {
			return apperr.InvalidArgument("%s", err)
		}
	}

	chain, err := filter.New(conf.Filters, log)
	if err != nil {
		return apperr.InvalidArgument("%s", err)
	}

	p := pipeline.New(st, f,
		pipeline.WithLogger(log),
		pipeline.WithFilters(chain, conf.ApplyFilters),
		pipeline.WithTextWidth(textWidth(log)),
	)

	res, err := p.Run(ctx, req)
	if err != nil {
		return err
	}
	log.Debugw("run finished", "state", res.State.String(), "items", len(res.Feed.Items))
	return nil
}

// loadConfig reads the config, creating the default one on first use
func loadConfig(cfgPath string) (config.Config, error) {
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			return conf, fmt.Errorf("failed to write default config with %w", err)
		}
		return conf, nil
	}
	if err != nil {
		return conf, fmt.Errorf("failed to read config with %w", err)
	}
	return conf, nil
}

func normalizeSource(source string) string {
	return strings.TrimRight(strings.TrimSpace(source), "/")
}

func textWidth(log *zap.SugaredLogger) int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return render.DefaultWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		log.Debugw("failed to get terminal size", "error", err)
		return render.DefaultWidth
	}
	return width
}
