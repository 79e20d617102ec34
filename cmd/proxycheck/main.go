// Package main provides the proxycheck CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"
)

// Options defines global command line options
type Options struct {
	Config  string `short:"c" long:"config" description:"Path to optional TOML configuration file"`
	EnvFile string `short:"e" long:"env-file" default:".env" description:"Dotenv file loaded into the environment before reading API keys"`
	Verbose bool   `short:"v" long:"verbose" description:"Enable verbose logging"`
	Version bool   `long:"version" description:"Show version information"`
}

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errMissingCredentials ends the run before any request is sent.
var errMissingCredentials = errors.New("missing required API keys")

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	var opts Options
	parser := newParser(&opts, stdout, stderr)

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}
	return 0
}

func newParser(opts *Options, stdout, stderr io.Writer) *flags.Parser {
	parser := flags.NewParser(opts, flags.Default)
	parser.Name = "proxycheck"
	parser.Usage = "[OPTIONS] [run | stub]"
	parser.SubcommandsOptional = true

	run := &runCommand{global: opts, stdout: stdout, stderr: stderr}
	if _, err := parser.AddCommand("run",
		"Send sample requests through the proxy",
		"Sends one Anthropic request, one OpenAI request and one streamed OpenAI request "+
			"through the proxy and prints the outcome of each. This is the default command.",
		run); err != nil {
		panic(err)
	}
	if _, err := parser.AddCommand("stub",
		"Serve a canned fake proxy",
		"Serves the Anthropic and OpenAI routes with canned replies so the harness can be exercised offline.",
		&stubCommand{}); err != nil {
		panic(err)
	}

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		setupLogging(opts.Verbose, stderr)
		if opts.Version {
			printVersion(stdout)
			return nil
		}
		if cmd == nil {
			cmd = run
		}
		return cmd.Execute(args)
	}
	return parser
}

func setupLogging(verbose bool, w io.Writer) {
	if verbose {
		slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		})))
		slog.Debug("Verbose logging enabled")
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "proxycheck %s\n", version)
	fmt.Fprintf(w, "commit: %s\n", commit)
	fmt.Fprintf(w, "built: %s\n", date)
}
