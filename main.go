package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/xlab/closer"

	"github.com/leafo/midiroute/internal/config"
	"github.com/leafo/midiroute/internal/devices"
	"github.com/leafo/midiroute/internal/devices/rtmidi"
	"github.com/leafo/midiroute/internal/router"
)

const usage = `usage: midiroute <command> [flags]

commands:
  list    list available MIDI ports
  route   route MIDI messages from one port to another

Run "midiroute <command> -h" for the flags of a command.
`

// logger is shared by the router; initLogger replaces it once flags are known.
var logger = slog.Default()

// initLogger configures the shared slog logger and calls slog.SetDefault so
// the stdlib log package also routes through the same handler.
func initLogger(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	lookup func(string) (string, bool)
	open   func(w io.Writer) (*devices.Directory, error)
	// dotenv is the .env file loaded into the environment, if any.
	dotenv string
}

func main() {
	defer closer.Close()

	a := &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		lookup: os.LookupEnv,
		open:   openHostDevices,
		dotenv: config.LoadDotEnv(".env"),
	}
	if err := a.run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		closer.Fatalln("Error:", err)
	}
}

// openHostDevices opens the rtmidi backend and closes it when the process
// exits, including on SIGINT/SIGTERM.
func openHostDevices(w io.Writer) (*devices.Directory, error) {
	dir, err := rtmidi.Open(w)
	if err != nil {
		return nil, err
	}
	closer.Bind(func() {
		if err := dir.Close(); err != nil {
			slog.Warn("failed to close MIDI driver", "err", err)
		}
	})
	return dir, nil
}

func (a *app) run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.stderr, usage)
		return errors.New("missing command")
	}

	switch args[0] {
	case "list":
		return a.runList(args[1:])
	case "route":
		return a.runRoute(args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return nil
	default:
		fmt.Fprint(a.stderr, usage)
		return errors.Errorf("unknown command %q", args[0])
	}
}

func (a *app) runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	asJSON := fs.Bool("json", false, "print the ports as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir, err := a.open(a.stdout)
	if err != nil {
		return err
	}

	if *asJSON {
		return dir.ListJSON()
	}
	return dir.List()
}

func (a *app) runRoute(args []string) error {
	var flags config.Config

	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&flags.SourceName, "source-name", "", "input port name")
	fs.StringVar(&flags.SourceName, "s", "", "shorthand for --source-name")
	fs.StringVar(&flags.TargetName, "target-name", "", "output port name")
	fs.StringVar(&flags.TargetName, "t", "", "shorthand for --target-name")
	fs.StringVar(&flags.VirtualTarget, "virtual-target", "", "publish a virtual output port with this name and route to it")
	fs.BoolVar(&flags.Verbose, "verbose", false, "log every forwarded message")
	configFile := fs.String("config", "", "load the route from a JSON config file")
	saveConfigFile := fs.String("save-config", "", "save the resolved route to a JSON file (- for stdout) and exit without routing")
	interactive := fs.Bool("interactive", false, "pick missing ports from a menu")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return errors.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := &config.Config{}
	if err := cfg.FromEnv(a.lookup); err != nil {
		return err
	}
	if *configFile != "" {
		fileCfg, err := config.Load(*configFile)
		if err != nil {
			return errors.WithMessagef(err, "config %s", *configFile)
		}
		cfg.Merge(fileCfg)
	}
	cfg.Merge(&flags)
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "verbose" {
			cfg.Verbose = flags.Verbose
		}
	})

	if !*interactive {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	initLogger(a.stderr, cfg.Verbose)
	if a.dotenv != "" {
		logger.Debug("loaded env file", "path", a.dotenv)
	}

	dir, err := a.open(a.stdout)
	if err != nil {
		return err
	}

	if *interactive {
		if err := selectMissing(dir, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if *saveConfigFile != "" {
		if err := checkPorts(dir, cfg); err != nil {
			return err
		}
		if *saveConfigFile == "-" {
			return config.Write(a.stdout, cfg)
		}
		if err := config.Save(cfg, *saveConfigFile); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Configuration saved to %s\n", *saveConfigFile)
		return nil
	}

	route, err := resolveRoute(dir, cfg)
	if err != nil {
		return err
	}
	return router.New(a.stdout, a.stdin, logger).Activate(context.Background(), route)
}

// checkPorts verifies that the named ports exist without opening anything.
func checkPorts(dir *devices.Directory, cfg *config.Config) error {
	if cfg.TargetName != "" {
		if _, err := dir.FindOutput(cfg.TargetName); err != nil {
			return err
		}
	}
	_, err := dir.FindInput(cfg.SourceName)
	return err
}

func resolveRoute(dir *devices.Directory, cfg *config.Config) (router.Route, error) {
	if cfg.VirtualTarget != "" {
		return router.ResolveVirtual(dir, cfg.SourceName, cfg.VirtualTarget)
	}
	return router.Resolve(dir, cfg.SourceName, cfg.TargetName)
}

// selectMissing prompts for whichever port names cfg lacks.
func selectMissing(dir *devices.Directory, cfg *config.Config) error {
	if cfg.SourceName == "" {
		in, err := dir.SelectInput()
		if err != nil {
			return err
		}
		cfg.SourceName = in.String()
	}
	if cfg.TargetName == "" && cfg.VirtualTarget == "" {
		out, err := dir.SelectOutput()
		if err != nil {
			return err
		}
		cfg.TargetName = out.String()
	}
	return nil
}
