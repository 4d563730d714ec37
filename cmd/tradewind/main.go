// ABOUTME: Entry point for the tradewind agent runtime
// ABOUTME: Loads configuration, boots the extension runtime, and hands off to the console boundary

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tradewind/internal/builtins"
	"tradewind/internal/config"
	"tradewind/internal/runtime"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                 _                _           _
| |_ _ __ __ _  __| | _____      __(_)_ __   __| |
| __| '__/ _' |/ _' |/ _ \ \ /\ / /| | '_ \ / _' |
| |_| | | (_| | (_| |  __/\ V  V / | | | | | (_| |
 \__|_|  \__,_|\__,_|\___| \_/\_/  |_|_| |_|\__,_|
`

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tradewind",
		Short:         "Trading assistant agent runtime with pluggable tool extensions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the configuration file")

	root.AddCommand(newConfigCmd(&configPath))

	return root
}

func runAgent(ctx context.Context, configPath string) error {
	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Workspace:  %s\n", cfg.DataDir())
	green.Print("    ▶ ")
	fmt.Printf("Extensions: %s\n", strings.Join(cfg.Agent.ExtensionEnabled, ", "))
	fmt.Println()

	logger.Info("starting tradewind",
		"config", configPath,
		"enabled", cfg.Agent.ExtensionEnabled,
	)

	resolver := builtins.Resolver(builtins.Defaults{DataDir: cfg.DataDir()})
	rt := runtime.New(cfg, resolver, logger)

	err = rt.Run(ctx, newConsoleBoundary(os.Stdin, os.Stdout))
	if errors.Is(err, runtime.ErrNoExtensions) {
		return fmt.Errorf("%w: check agent.extension_enabled and [extensions] sections", err)
	}
	return err
}

func newConfigCmd(configPath *string) *cobra.Command {
	var (
		list     bool
		initDoc  bool
		validate bool
		enable   []string
		disable  []string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the configuration document",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := builtins.Resolver(builtins.Defaults{DataDir: "."})

			if list {
				fmt.Println("Available extension locations:")
				for _, location := range resolver.Catalog() {
					fmt.Printf("  %s\n", location)
				}
				return nil
			}

			if initDoc {
				if err := config.WriteStarter(*configPath, resolver.Catalog(), enable); err != nil {
					return err
				}
				fmt.Printf("Config written to %s\n", *configPath)
				return nil
			}

			for _, namespace := range enable {
				if err := config.SetEnabled(*configPath, namespace, true); err != nil {
					return err
				}
				fmt.Printf("Enabled %s\n", namespace)
			}
			for _, namespace := range disable {
				if err := config.SetEnabled(*configPath, namespace, false); err != nil {
					return err
				}
				fmt.Printf("Disabled %s\n", namespace)
			}

			if validate || (len(enable) == 0 && len(disable) == 0) {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return err
				}
				fmt.Printf("%s is valid\n", *configPath)
				for _, entry := range cfg.Entries() {
					state := "disabled"
					if entry.Enabled {
						state = "enabled"
					}
					fmt.Printf("  %-16s %-24s %s\n", entry.Namespace, entry.Location, state)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "list available extension locations")
	cmd.Flags().BoolVar(&initDoc, "init", false, "write a starter configuration document")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate the configuration document")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "namespaces to enable")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "namespaces to disable")

	return cmd
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
