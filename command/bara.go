package command

import (
	"cmp"
	"context"
	"errors"

	"capybara/columnar"
	"capybara/command/ui"
	"capybara/config"
	"capybara/report"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

type BaraCommand struct {
	flags *pflag.FlagSet

	match   []string
	unmatch []string
	out     string
	serve   bool
	watch   bool
	addr    string

	open columnar.Opener
}

func NewBaraCommand() *BaraCommand {
	c := &BaraCommand{
		flags: pflag.NewFlagSet("bara", pflag.ContinueOnError),
		open:  columnar.OpenROOT,
	}

	c.flags.StringArrayVarP(&c.match, "match", "m", nil, "Only compare keys matching this regular expression (repeatable)")
	c.flags.StringArrayVarP(&c.unmatch, "unmatch", "M", nil, "Skip keys matching this regular expression (repeatable)")
	c.flags.StringVar(&c.out, "out", "", "Directory to write the report into (default capybara-reports)")
	c.flags.BoolVar(&c.serve, "serve", false, "Serve the report after writing it")
	c.flags.BoolVar(&c.watch, "watch", false, "Rebuild the report when an input file changes")
	c.flags.StringVar(&c.addr, "addr", "", "Address to serve the report on (default 127.0.0.1:24535)")

	return c
}

func (c *BaraCommand) Synopsis() string {
	return "Compare event files and write an HTML report"
}

func (c *BaraCommand) Flags() *pflag.FlagSet {
	return c.flags
}

func (c *BaraCommand) Execute(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return errors.New("expected at least one file to compare")
	}

	filter, err := columnar.NewFilter(c.match, c.unmatch)
	if err != nil {
		return err
	}

	opts := report.Options{
		Files:      args,
		Filter:     filter,
		Open:       c.open,
		Dir:        cmp.Or(c.out, cfg.Report.Dir),
		LiveReload: c.serve && c.watch,
	}

	if _, err := report.Build(ctx, opts); err != nil {
		return err
	}
	ui.Successf("Report written to %s", opts.Dir)

	if !c.serve && !c.watch {
		return nil
	}

	var reload *report.Reloader
	if c.serve {
		reload = report.NewReloader()
	}

	g, ctx := errgroup.WithContext(ctx)

	if c.serve {
		addr := cmp.Or(c.addr, cfg.Report.ServeAddr)
		g.Go(func() error {
			return report.Serve(ctx, opts.Dir, addr, reload, func(bound string) {
				ui.Successf("Serving report at http://%s", bound)
			})
		})
	}

	if c.watch {
		g.Go(func() error {
			return report.Watch(ctx, opts.Files, report.Settle, func(ctx context.Context) error {
				if _, err := report.Build(ctx, opts); err != nil {
					return err
				}
				if reload != nil {
					reload.Reload()
				}
				return nil
			})
		})
	}

	return g.Wait()
}
