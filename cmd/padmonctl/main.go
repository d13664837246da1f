// Padmonctl is the command-line client for monitoring and controlling a
// running padmond instance. It connects over HTTP and WebSocket to query
// status, manage the serial connection, and stream live pad events.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/strikeline/padmon/internal/ctl"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8090", "Pad monitor daemon URL (e.g. http://192.168.8.1:8090)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter hit,state)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --dir are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, ctl.StatusOptions{JSON: *jsonOut})

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.Version(*host, version, *jsonOut)

	case "ports":
		err = ctl.Ports(*host, ctl.PortsOptions{JSON: *jsonOut})

	case "channels":
		err = ctl.Channels(*host, *jsonOut)

	case "snapshot":
		opts := ctl.SnapshotOptions{JSON: *jsonOut}
		snapFlags := pflag.NewFlagSet("snapshot", pflag.ContinueOnError)
		snapFlags.IntVar(&opts.Entries, "entries", 0, "History entries to show per channel")
		_ = snapFlags.Parse(subArgs)
		err = ctl.Snapshot(*host, opts)

	case "config":
		opts := ctl.ConfigOptions{JSON: *jsonOut}
		cfgFlags := pflag.NewFlagSet("config", pflag.ContinueOnError)
		cfgFlags.BoolVar(&opts.Profiles, "profiles", false, "List named config profiles")
		_ = cfgFlags.Parse(subArgs)
		err = ctl.Config(*host, opts)

	case "recordings":
		opts := ctl.RecordingsOptions{JSON: *jsonOut}
		recFlags := pflag.NewFlagSet("recordings", pflag.ContinueOnError)
		recFlags.StringVar(&opts.Delete, "delete", "", "Delete a recording by filename")
		_ = recFlags.Parse(subArgs)
		err = ctl.Recordings(*host, opts)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Filter by log level (info, warn, error)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	case "settings":
		err = ctl.Settings(*host, ctl.SettingsOptions{Set: subArgs, JSON: *jsonOut})

	// ── Control commands ──────────────────────────────────────────
	case "connect":
		opts := ctl.ConnectOptions{JSON: *jsonOut}
		if len(subArgs) > 0 {
			opts.Port = subArgs[0]
		}
		err = ctl.Connect(*host, opts)

	case "disconnect":
		err = ctl.Disconnect(*host, *jsonOut)

	case "clear":
		err = ctl.Clear(*host, *jsonOut)

	case "capacity":
		if len(subArgs) != 1 {
			err = fmt.Errorf("usage: padmonctl capacity <entries>")
			break
		}
		var n int
		if n, err = strconv.Atoi(subArgs[0]); err != nil {
			err = fmt.Errorf("bad capacity %q", subArgs[0])
			break
		}
		err = ctl.Capacity(*host, n, *jsonOut)

	case "thresholds":
		var values []int
		if len(subArgs) > 0 {
			values, err = parseInts(subArgs)
			if err != nil {
				break
			}
		}
		err = ctl.Thresholds(*host, values, *jsonOut)

	case "record":
		if len(subArgs) < 1 {
			err = fmt.Errorf("usage: padmonctl record <start|stop>")
			break
		}
		switch subArgs[0] {
		case "start":
			opts := ctl.RecordStartOptions{JSON: *jsonOut}
			startFlags := pflag.NewFlagSet("record start", pflag.ContinueOnError)
			startFlags.StringVar(&opts.Dir, "dir", "", "Directory for the CSV file")
			_ = startFlags.Parse(subArgs[1:])
			err = ctl.RecordStart(*host, opts)
		case "stop":
			err = ctl.RecordStop(*host, *jsonOut)
		default:
			err = fmt.Errorf("usage: padmonctl record <start|stop>")
		}

	case "reload":
		opts := ctl.ReloadOptions{JSON: *jsonOut}
		reloadFlags := pflag.NewFlagSet("reload", pflag.ContinueOnError)
		reloadFlags.StringVar(&opts.Profile, "profile", "", "Switch to a named config profile")
		_ = reloadFlags.Parse(subArgs)
		err = ctl.Reload(*host, opts)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// parseInts converts arguments like "450 350 350 450" (or a single
// comma-separated value) into a slice of ints.
func parseInts(args []string) ([]int, error) {
	if len(args) == 1 && strings.Contains(args[0], ",") {
		args = strings.Split(args[0], ",")
	}
	out := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(strings.TrimSpace(a))
		if err != nil {
			return nil, fmt.Errorf("bad value %q", a)
		}
		out = append(out, n)
	}
	return out, nil
}

func usage() {
	fmt.Print(`
  padmonctl — drum pad monitor control CLI

  USAGE
    padmonctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, link status, and counters
    health          Check daemon and component health
    version         Show CLI and daemon version information
    ports           List serial ports, flagging pad controllers
    channels        Show the pad catalog (index, label, color)
    snapshot        Show current per-channel levels and history
    settings        Read controller firmware settings
    recordings      List recorded CSV files
    config          Show the daemon's running configuration
    logs            Show recent daemon log messages

  COMMANDS (control)
    connect [PORT]      Open the serial link (default: configured port)
    disconnect          Close the serial link
    clear               Empty channel histories and counters
    capacity N          Resize per-channel history buffers
    thresholds [V...]   Show or set the four display thresholds
    settings K=V ...    Write firmware settings and save to flash
    record start|stop   Start or stop a CSV recording session
    reload              Reload configuration from disk

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8090)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    snapshot:
        --entries N     History entries to show per channel

    recordings:
        --delete NAME   Delete a recording by filename

    record start:
        --dir PATH      Directory for the CSV file

    logs:
        --level LEVEL   Filter by log level (info, warn, error)
        --limit N       Limit number of log entries shown
        --tail          Stream live log events

    reload:
        --profile NAME  Switch to a named config profile

    config:
        --profiles      List named config profiles

  EXAMPLES
    padmonctl ports
    padmonctl connect /dev/ttyACM0
    padmonctl status
    padmonctl snapshot --entries 8
    padmonctl thresholds 450 350 350 450
    padmonctl settings
    padmonctl settings 0=800 9=1
    padmonctl record start --dir /tmp
    padmonctl record stop
    padmonctl recordings
    padmonctl watch --filter hit,state
    padmonctl logs --level error --limit 20
    padmonctl reload --profile practice

`)
}
