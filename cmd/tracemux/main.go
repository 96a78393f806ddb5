package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/tracemux/internal/cliconfig"
	"github.com/bft-labs/tracemux/pkg/frame"
	"github.com/bft-labs/tracemux/pkg/tracemux"
)

const helpDescription = `
Multiplex console output and controller trace records into one framed
byte stream, and decode such streams back into records.

Highlights:
  - Console lines from stdin become user frames; --demo adds synthetic
    controller task, ISR and HCI traffic.
  - Frames go to stdout, a file, a serial port or an MQTT topic.
  - Dropped records are counted and reported in-band as loss frames.
  - Configure via file (TOML or YAML), TRACEMUX_* env vars, or flags.
`

var exampleUsage = strings.TrimSpace(`
  dmesg -w | tracemux --transport serial --device /dev/ttyUSB0
  tracemux --demo --transport file --output trace.bin
  tracemux decode trace.bin
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:          "tracemux",
		Short:        "Multiplex console and controller traces into a framed transport stream",
		Long:         strings.TrimSpace(helpDescription),
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s (tracemux %s, frame %s) %s/%s", getVersion(), tracemux.Version, frame.Version, runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Determine config path
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			} else {
				cfgFile = ""
			}

			// Apply environment variables (TRACEMUX_*)
			// These override file config but are overridden by flags (checked via changed map)
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), cfg, cfgFile, cmd.InOrStdin())
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.tracemux/config.toml)")

	root.Flags().StringVar(&cfg.Transport, "transport", cfg.Transport, "frame transport: stdout, file, serial or mqtt")
	root.Flags().StringVar(&cfg.Output, "output", cfg.Output, "output file for the file transport")
	root.Flags().StringVar(&cfg.Device, "device", cfg.Device, "serial device for the serial transport")
	root.Flags().IntVar(&cfg.Baud, "baud", cfg.Baud, "serial baud rate")
	root.Flags().StringVar(&cfg.BrokerURL, "broker", cfg.BrokerURL, "MQTT broker URL, e.g. tcp://host:1883/topic")
	root.Flags().StringVar(&cfg.Topic, "topic", cfg.Topic, "MQTT topic (overrides the broker URL path)")
	root.Flags().IntVar(&cfg.QoS, "qos", cfg.QoS, "MQTT publish QoS")
	root.Flags().IntVar(&cfg.QueueDepth, "queue-depth", cfg.QueueDepth, "buffers queued on a stream transport")

	root.Flags().IntVar(&cfg.UserBufferSize, "user-buffer", cfg.UserBufferSize, "console channel buffer size in bytes")
	root.Flags().IntVar(&cfg.TaskBufferSize, "task-buffer", cfg.TaskBufferSize, "controller task channel buffer size in bytes")
	root.Flags().IntVar(&cfg.ISRBufferSize, "isr-buffer", cfg.ISRBufferSize, "controller ISR channel buffer size in bytes")
	root.Flags().IntVar(&cfg.HCIBufferSize, "hci-buffer", cfg.HCIBufferSize, "controller HCI channel buffer size in bytes")

	root.Flags().DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "flush tick period")
	root.Flags().DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "console idle time before a partial buffer is sent")
	root.Flags().DurationVar(&cfg.DrainTimeout, "drain-timeout", cfg.DrainTimeout, "wait for in-flight buffers on exit (negative waits forever)")

	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	root.Flags().BoolVar(&cfg.Demo, "demo", cfg.Demo, "emit synthetic controller traffic")
	root.Flags().DurationVar(&cfg.DemoInterval, "demo-interval", cfg.DemoInterval, "period of synthetic controller records")
	root.Flags().BoolVar(&cfg.DumpOnExit, "dump-on-exit", cfg.DumpOnExit, "hex dump every buffer to stderr before exiting")
	root.Flags().BoolVar(&cfg.Pace, "pace", cfg.Pace, "throttle stdout and file output to the baud rate")
	root.Flags().BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload flush settings when the config file changes")

	root.AddCommand(newDecodeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tracemux:", err)
		os.Exit(1)
	}
}
