// Command growlight is the line-oriented CLI driver over the storage
// core (spec §6): a thin, testable verb dispatcher, not the excluded
// full-screen UI. Each verb maps to one core call.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/dankamongmen/growlight/internal/config"
	"github.com/dankamongmen/growlight/internal/diag"
	"github.com/dankamongmen/growlight/internal/graph"
	"github.com/dankamongmen/growlight/internal/subprocess"
	"github.com/dankamongmen/growlight/internal/target"
)

// version is the CLI's reported version (spec §6 "version" verb).
const version = "0.1.0"

// options are the global flags accepted before a verb.
type options struct {
	ConfigPath    string `long:"config" description:"main YAML config path" default:"/etc/growlight/growlight.yaml"`
	OverridePath  string `long:"config-override" description:"legacy INI override path" default:"/etc/growlight/growlight.ini"`
	StateDir      string `long:"state-dir" description:"directory holding the diagnostic and target-plan bbolt stores" default:"/var/lib/growlight"`
}

// app bundles the long-lived state a verb's Execute needs: the device
// graph, diagnostic sink, target-root planner, and the external-tool
// runner. Every verb command embeds a pointer to the same app instance.
type app struct {
	cfg      *config.Config
	graph    *graph.Graph
	diag     *diag.Sink
	diagStore *diag.Store
	planStore *target.Store
	runner   *subprocess.Runner
}

func newApp(opts *options) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		cfg = &config.Config{Retry: config.RetryConfig{Attempts: 3, DelaySeconds: 3}}
	}
	if err := config.ApplyOverrides(cfg, opts.OverridePath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.StateDir, 0755); err != nil {
		return nil, err
	}

	diagStore, err := diag.OpenStore(filepath.Join(opts.StateDir, "diag.db"))
	if err != nil {
		return nil, err
	}
	sink := diag.NewSink(diag.JournalMirror{}, nil)
	if err := sink.AttachStore(diagStore); err != nil {
		return nil, err
	}

	planStore, err := target.OpenStore(filepath.Join(opts.StateDir, "target.db"))
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		graph:     graph.New(nil),
		diag:      sink,
		diagStore: diagStore,
		planStore: planStore,
		runner:    subprocess.NewRunner(4, 4),
	}, nil
}

func (a *app) close() {
	a.diagStore.Close()
	a.planStore.Close()
}

// appHolder lets every command struct close over a single *app that is
// only constructed once option parsing has resolved --config and
// --state-dir, rather than at registration time.
type appHolder struct {
	a *app
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "growlight storage manager"

	holder := &appHolder{}
	parser.CommandHandler = func(command flags.Commander, args []string) error {
		built, err := newApp(&opts)
		if err != nil {
			return err
		}
		holder.a = built
		defer built.close()
		return command.Execute(args)
	}

	registerCommands(parser, holder)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
