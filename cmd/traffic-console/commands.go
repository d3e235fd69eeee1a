package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"white-traffic-console/internal/alert"
	"white-traffic-console/internal/model"
	"white-traffic-console/internal/pipeline"
	"white-traffic-console/internal/render"
	"white-traffic-console/internal/rules"
	"white-traffic-console/internal/session"
	"white-traffic-console/internal/traffic"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (c *console) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("u", c.config.Client.Username, "Username")
	password := fs.String("p", c.config.Client.Password, "Password")
	fs.Parse(args)

	user, err := c.session.Login(ctx, c.gateway, session.Credentials{Username: *username, Password: *password})
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", user.Username)
	fmt.Printf("export CONSOLE_TOKEN=%s\n", user.Token)
	return nil
}

func (c *console) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("u", "", "Username")
	password := fs.String("p", "", "Password")
	confirm := fs.String("confirm", "", "Password confirmation")
	fs.Parse(args)

	user, err := c.session.Register(ctx, c.gateway, session.Credentials{
		Username: *username,
		Password: *password,
		Confirm:  *confirm,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s\n", user.Username)
	fmt.Printf("export CONSOLE_TOKEN=%s\n", user.Token)
	return nil
}

// Rules

func (c *console) rules(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: rules list|create|edit|delete|test")
	}
	reg := rules.NewRegistry(c.gateway, c.logger)
	if err := reg.Load(ctx); err != nil {
		return err
	}

	sub, args := args[0], args[1:]
	switch sub {
	case "list":
		render.Rules(os.Stdout, reg.List())
		render.RuleStats(os.Stdout, reg.Stats())
		return nil

	case "create":
		fs := flag.NewFlagSet("rules create", flag.ExitOnError)
		fields := ruleFlags(fs)
		fs.Parse(args)
		form := reg.Form()
		if err := applyRuleFlags(reg, form, fs, fields); err != nil {
			return err
		}
		created, err := reg.Create(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Created rule %s\n", created.ID)
		render.Rules(os.Stdout, reg.List())
		return nil

	case "edit":
		fs := flag.NewFlagSet("rules edit", flag.ExitOnError)
		fields := ruleFlags(fs)
		fs.Parse(args)
		id, err := idArg(fs.Args())
		if err != nil {
			return err
		}
		draft, err := reg.BeginEdit(id)
		if err != nil {
			return fmt.Errorf("rule %s: %w", id, err)
		}
		if err := applyRuleFlags(reg, draft, fs, fields); err != nil {
			reg.CancelEdit(draft)
			return err
		}
		render.Draft(os.Stdout, draft)
		if _, err := reg.CommitEdit(ctx, draft); err != nil {
			return err
		}
		fmt.Printf("Updated rule %s\n", id)
		return nil

	case "delete":
		fs := flag.NewFlagSet("rules delete", flag.ExitOnError)
		yes := fs.Bool("yes", false, "Confirm the deletion")
		fs.Parse(args)
		id, err := idArg(fs.Args())
		if err != nil {
			return err
		}
		if !*yes {
			return fmt.Errorf("refusing to delete rule %s without -yes", id)
		}
		if err := reg.Remove(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted rule %s\n", id)
		return nil

	case "test":
		id, err := idArg(args)
		if err != nil {
			return err
		}
		outcome, err := reg.Test(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(outcome.Message)
		return nil
	}
	return fmt.Errorf("unknown rules command %q", sub)
}

type ruleFields struct {
	name        *string
	description *string
	conditions  *string
	active      *bool
}

func ruleFlags(fs *flag.FlagSet) ruleFields {
	return ruleFields{
		name:        fs.String("name", "", "Rule name"),
		description: fs.String("description", "", "Rule description"),
		conditions:  fs.String("conditions", "", `Filter conditions, e.g. {"ip_range": "192.168.1.0/24"}`),
		active:      fs.Bool("active", true, "Whether the rule is active"),
	}
}

// applyRuleFlags copies only the flags given on the command line into d.
func applyRuleFlags(reg *rules.Registry, d *rules.Draft, fs *flag.FlagSet, f ruleFields) error {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		field, perr := rules.ParseField(fl.Name)
		if perr != nil {
			err = perr
			return
		}
		switch field {
		case rules.FieldName:
			err = reg.UpdateField(d, field, *f.name)
		case rules.FieldDescription:
			err = reg.UpdateField(d, field, *f.description)
		case rules.FieldConditions:
			err = reg.UpdateField(d, field, *f.conditions)
		case rules.FieldActive:
			err = reg.UpdateField(d, field, *f.active)
		}
	})
	return err
}

func idArg(args []string) (model.ID, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("expected exactly one id argument")
	}
	return model.ID(args[0]), nil
}

// Alerts

func (c *console) alerts(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	board := alert.NewBoard(c.gateway, c.logger)
	board.RegisterNotifier(alert.NewLogAlertNotifier(c.logger))

	sub, args := args[0], args[1:]
	fs := flag.NewFlagSet("alerts "+sub, flag.ExitOnError)
	resolved := fs.Bool("resolved", c.config.Console.ShowResolved, "Include resolved alerts")
	fs.Parse(args)

	var err error
	if *resolved {
		err = board.SetShowResolved(ctx, true)
	} else {
		err = board.Load(ctx)
	}
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		render.Alerts(os.Stdout, board.Alerts(), board.ShowResolved())
		render.AlertCounts(os.Stdout, board.Counts())
		return nil

	case "show":
		id, err := idArg(fs.Args())
		if err != nil {
			return err
		}
		for _, a := range board.Alerts() {
			if a.ID == id {
				render.AlertDetail(os.Stdout, a)
				return nil
			}
		}
		return fmt.Errorf("alert %s is not on the board", id)

	case "resolve":
		id, err := idArg(fs.Args())
		if err != nil {
			return err
		}
		if err := board.Resolve(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Resolved alert %s\n", id)
		return nil

	case "dismiss":
		id, err := idArg(fs.Args())
		if err != nil {
			return err
		}
		if err := board.Dismiss(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Dismissed alert %s\n", id)
		return nil
	}
	return fmt.Errorf("unknown alerts command %q", sub)
}

// Traffic

func (c *console) traffic(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("traffic", flag.ExitOnError)
	rng := fs.String("range", string(c.config.DefaultRange()), "Time range: 1h, 24h, 7d, 30d")
	trends := fs.Bool("trends", false, "Print the trend table")
	fs.Parse(args)

	view := traffic.NewView(c.gateway, c.config.DefaultRange(), c.logger)
	if err := view.SetRange(ctx, model.TimeRange(*rng)); err != nil {
		return err
	}
	printTraffic(view, *trends)
	return nil
}

func printTraffic(view *traffic.View, trends bool) {
	snap := view.Snapshot()
	render.TrafficSummary(os.Stdout, view.Range(), traffic.DeriveSummary(snap))
	render.Distribution(os.Stdout, "Traffic mix", traffic.DeriveSummaryDistribution(snap))
	render.Distribution(os.Stdout, "Top sources", traffic.DeriveSourceDistribution(snap))
	if trends {
		render.TrendTable(os.Stdout, traffic.DeriveTrendSeries(snap))
	}
}

// Watch

func (c *console) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	interval := fs.Duration("interval", 30*time.Second, "Refresh interval")
	rng := fs.String("range", string(c.config.DefaultRange()), "Time range: 1h, 24h, 7d, 30d")
	metricsAddr := fs.String("metrics-addr", "", "Serve client metrics on this address, e.g. :9102")
	fs.Parse(args)

	r, err := model.ParseTimeRange(*rng)
	if err != nil {
		return err
	}

	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 15 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.logger.Errorf("Metrics server failed: %v", err)
			}
		}()
		defer srv.Close()
		c.logger.Infof("Serving client metrics on %s", *metricsAddr)
	}

	board := alert.NewBoard(c.gateway, c.logger)
	if err := board.SetShowResolved(ctx, c.config.Console.ShowResolved); err != nil {
		return err
	}
	view := traffic.NewView(c.gateway, r, c.logger)

	refresher := pipeline.NewRefresher(*interval, c.logger)
	refresher.Add("alerts", pipeline.SourceFunc(board.Load))
	refresher.Add("traffic", view)

	err = refresher.Run(ctx, func(errs map[string]error) {
		fmt.Printf("\n=== %s ===\n", time.Now().Format("2006-01-02 15:04:05"))
		render.Alerts(os.Stdout, board.Alerts(), board.ShowResolved())
		render.AlertCounts(os.Stdout, board.Counts())
		printTraffic(view, false)
		for name, e := range errs {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, e)
		}
	})
	if errors.Is(err, context.Canceled) {
		fmt.Println("Stopped")
		return nil
	}
	return err
}
