package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/oarkflow/script"
	"github.com/oarkflow/script/ast"
	"github.com/oarkflow/script/errs"
	"github.com/oarkflow/script/lexer"
	"github.com/oarkflow/script/parser"
	"github.com/oarkflow/script/pkg/server"
)

var sourceFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "file",
		Aliases: []string{"f"},
		Usage:   "Path to the script file",
	},
	&cli.StringFlag{
		Name:    "eval",
		Aliases: []string{"e"},
		Usage:   "Script source given inline",
	},
}

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to a configuration file (JSON, YAML, or BCL)",
	EnvVars: []string{"SCRIPT_CONFIG"},
}

func main() {
	app := &cli.App{
		Name:  "script",
		Usage: "Run and inspect scripts",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a script and wait for its pending fetch callbacks",
				Flags: append([]cli.Flag{
					configFlag,
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Overall time allowed for the script and its callbacks",
						Value: time.Minute,
					},
					&cli.BoolFlag{
						Name:  "globals",
						Usage: "Print the top-level bindings after the run",
					},
				}, sourceFlags...),
				Action: runScript,
			},
			{
				Name:   "tokens",
				Usage:  "Print the token stream of a script",
				Flags:  sourceFlags,
				Action: printTokens,
			},
			{
				Name:   "ast",
				Usage:  "Print the syntax tree of a script",
				Flags:  sourceFlags,
				Action: printAST,
			},
			{
				Name:  "serve",
				Usage: "Start the script server",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:  "port",
						Value: "8080",
						Usage: "Port to run the server on",
					},
					&cli.StringFlag{
						Name:  "version",
						Value: "1.0.0",
						Usage: "Server version",
					},
				},
				Action: startServer,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func readSource(c *cli.Context) (string, error) {
	if src := c.String("eval"); src != "" {
		return src, nil
	}
	path := c.String("file")
	if path == "" {
		return "", cli.Exit("either --file or --eval is required", 2)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func loadConfig(c *cli.Context) (*script.Config, error) {
	path := c.String("config")
	if path == "" {
		return &script.Config{}, nil
	}
	cfg, err := script.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	rc, err := cfg.RuntimeConfig(script.GetRuntimeConfig())
	if err != nil {
		return nil, err
	}
	script.SetRuntimeConfig(rc)
	return cfg, nil
}

// report prints typed errors against the source with a caret and turns
// them into an exit error.
func report(source string, err error) error {
	var list errs.List
	var one *errs.Error
	switch {
	case errors.As(err, &list):
		fmt.Fprint(os.Stderr, errs.Display(source, list))
	case errors.As(err, &one):
		fmt.Fprint(os.Stderr, errs.Display(source, []*errs.Error{one}))
	default:
		return err
	}
	return cli.Exit("", 1)
}

func runScript(c *cli.Context) error {
	source, err := readSource(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts = append(opts, script.WithOutput(os.Stdout))

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	host := script.NewHost(opts...)
	defer host.Close()
	if err := host.Load(ctx, source); err != nil {
		return report(source, err)
	}
	if err := host.Wait(ctx); err != nil {
		return report(source, err)
	}
	if c.Bool("globals") {
		globals, err := host.Globals(ctx)
		if err != nil {
			return err
		}
		for name, value := range globals {
			fmt.Printf("%s = %v\n", name, value)
		}
	}
	return nil
}

func printTokens(c *cli.Context) error {
	source, err := readSource(c)
	if err != nil {
		return err
	}
	fmt.Print(lexer.Dump(source))
	return nil
}

func printAST(c *cli.Context) error {
	source, err := readSource(c)
	if err != nil {
		return err
	}
	program, err := parser.Parse(source)
	if err != nil {
		return report(source, err)
	}
	fmt.Print(ast.Dump(program))
	return nil
}

func startServer(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	version := c.String("version")
	if cfg.Server.Version != "" {
		version = cfg.Server.Version
	}
	addr := ":" + c.String("port")
	if cfg.Server.Address != "" && !c.IsSet("port") {
		addr = cfg.Server.Address
	}

	srv := server.NewServer(server.Config{Version: version, Options: opts})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(addr)
	}()

	select {
	case err := <-serverErr:
		return err
	case sig := <-sigChan:
		fmt.Printf("Received signal: %v. Initiating graceful shutdown...\n", sig)
		if err := srv.Shutdown(); err != nil {
			return err
		}
		return <-serverErr
	}
}
