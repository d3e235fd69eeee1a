package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"white-traffic-console/internal/client"
	"white-traffic-console/internal/render"
	"white-traffic-console/internal/session"
	"white-traffic-console/internal/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func getVersion() string {
	content, err := os.ReadFile("VERSION")
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(content))
}

const usage = `Usage: traffic-console [flags] <command> [args]

Commands:
  login                         log in and print the bearer token
  register                      create an operator account
  rules list|create|edit|delete|test
  alerts list|show|resolve|dismiss
  traffic                       show traffic analytics for a time range
  watch                         refresh alerts and traffic periodically
  version                       print the version

Flags:
`

// console bundles the objects every command needs.
type console struct {
	config   *utils.ConsoleConfig
	logger   *logrus.Logger
	session  *session.Session
	gateway  *client.Gateway
	registry *prometheus.Registry
}

func main() {
	var (
		configFile = flag.String("config", utils.DefaultConfigPath, "Configuration file path (YAML)")
		apiURL     = flag.String("api", "", "Backend base URL (overrides api.base_url)")
		logLevel   = flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR")
		noColor    = flag.Bool("no-color", false, "Disable colour output")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	config, err := utils.LoadConsoleConfigOrDefault(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", *configFile, err)
		os.Exit(1)
	}
	secrets, err := utils.LoadSecrets()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := config.ApplySecrets(secrets); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *apiURL != "" {
		config.API.BaseURL = *apiURL
	}
	if *logLevel != "" {
		config.Logging.Level = *logLevel
	}
	if *noColor || config.Console.NoColor {
		render.DisableColor()
	}

	logger := utils.NewLogger(config.Logging.Level, config.Logging.Format)
	logger.SetOutput(os.Stderr)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if args[0] == "version" {
		fmt.Printf("traffic-console v%s\n", getVersion())
		return
	}

	sess := session.NewWithToken(config.Client.Username, config.Client.Token, func() {
		fmt.Fprintln(os.Stderr, "Session expired, log in again (traffic-console login) and export CONSOLE_TOKEN")
	}, logger)

	reg := prometheus.NewRegistry()
	gw, err := client.NewGateway(client.Config{
		BaseURL:   config.API.BaseURL,
		Timeout:   config.RequestTimeout(),
		UserAgent: config.Client.UserAgent,
	}, sess, logger, client.NewMetrics(reg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create API client: %v\n", err)
		os.Exit(1)
	}

	c := &console{
		config:   config,
		logger:   logger,
		session:  sess,
		gateway:  gw,
		registry: reg,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := c.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, client.ErrAuthExpired) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func (c *console) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	}

	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	switch cmd {
	case "rules":
		return c.rules(ctx, args)
	case "alerts":
		return c.alerts(ctx, args)
	case "traffic":
		return c.traffic(ctx, args)
	case "watch":
		return c.watch(ctx, args)
	default:
		return fmt.Errorf("unknown command %q, run with -h for usage", cmd)
	}
}

// ensureSession logs in with the configured credentials when no token is set.
func (c *console) ensureSession(ctx context.Context) error {
	if c.session.Authenticated() {
		return nil
	}
	if c.config.Client.Username == "" && c.config.Client.Password == "" {
		return fmt.Errorf("not logged in: set CONSOLE_TOKEN or CONSOLE_USERNAME/CONSOLE_PASSWORD")
	}
	_, err := c.session.Login(ctx, c.gateway, session.Credentials{
		Username: c.config.Client.Username,
		Password: c.config.Client.Password,
	})
	return err
}
