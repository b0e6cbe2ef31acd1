package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

// Globals are the flags shared by every command. Non-empty values override the config file.
type Globals struct {
	Config    string `help:"Path to a YAML configuration file." type:"path" env:"ORDERFSM_CONFIG"`
	LogLevel  string `help:"Log level (trace, debug, info, warn, error)." name:"log-level"`
	LogFormat string `help:"Log format." name:"log-format" enum:",console,json" default:""`
	Store     string `help:"Store driver." enum:",memory,sqlite,redis" default:""`
	DSN       string `help:"SQLite data source name." name:"dsn"`
	RedisAddr string `help:"Redis address." name:"redis-addr"`
}

type cli struct {
	Globals
}

// streams carries command output; logs go to err so out stays parseable.
type streams struct {
	out io.Writer
	err io.Writer
}

func commands() []CLICommand {
	return []CLICommand{
		&tableCmd{},
		&runCmd{},
		&createCmd{},
		&sendCmd{},
		&showCmd{},
		&summaryCmd{},
		&consumeCmd{},
	}
}

func newParser(root *cli, ctx context.Context, stdout, stderr io.Writer, extra ...kong.Option) (*kong.Kong, error) {
	opts := []kong.Option{
		kong.Name("orderfsm"),
		kong.Description("Drive order lifecycle state machines."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Bind(&root.Globals),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(&streams{out: stdout, err: stderr}),
	}
	opts = append(opts, cliOptions(commands()...)...)
	opts = append(opts, extra...)
	return kong.New(root, opts...)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, extra ...kong.Option) error {
	var root cli
	parser, err := newParser(&root, ctx, stdout, stderr, extra...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "orderfsm: %v\n", err)
		stop()
		os.Exit(1)
	}
}
