package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"patternpilot/cmd/pilot/ui"
	"patternpilot/internal/app"
	"patternpilot/internal/config"
	"patternpilot/internal/gateway"
	"patternpilot/internal/logging"
)

var (
	// Global flags
	configPath string
	gatewayURL string
	verbose    bool
)

var version = "0.1.0"

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "pilot",
	Short: "patternpilot - assistant surface for detected behavior patterns",
	Long: `patternpilot reviews behavior patterns detected by the backend,
converts them into reusable automations, runs those automations with live
progress, and records new automations interactively.

The backend (detector, executor, recorder) runs separately; pilot connects
to it over a websocket gateway and keeps a synchronized local view.

Run without arguments to open the status dashboard.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("patternpilot " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway-url", "", "backend gateway websocket url (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(versionCmd)
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "patternpilot.yaml"
	}
	return home + "/.config/patternpilot/config.yaml"
}

func runDashboard() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if gatewayURL != "" {
		cfg.Gateway.URL = gatewayURL
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gwCfg := gateway.ClientConfig{
		URL:          cfg.Gateway.URL,
		DialTimeout:  config.Duration(cfg.Gateway.DialTimeout, gateway.DefaultClientConfig("").DialTimeout),
		PingInterval: config.Duration(cfg.Gateway.PingInterval, gateway.DefaultClientConfig("").PingInterval),
		ReconnectMin: config.Duration(cfg.Gateway.ReconnectMin, gateway.DefaultClientConfig("").ReconnectMin),
		ReconnectMax: config.Duration(cfg.Gateway.ReconnectMax, gateway.DefaultClientConfig("").ReconnectMax),
	}
	client := gateway.NewClient(gwCfg, nil)

	opts := app.DefaultOptions()
	opts.ActionCountPoll = config.Duration(cfg.Polling.ActionCountInterval, opts.ActionCountPoll)
	core := app.New(client, opts)
	defer core.Close()
	client.SetEvents(core.Bus())

	watcher, err := config.NewWatcher(configPath, nil)
	if err == nil {
		if werr := watcher.Start(); werr == nil {
			defer watcher.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := client.Run(gctx)
		if gctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		// Initial loads race the first dial; push events and reloads
		// reconcile whatever they miss.
		if serr := core.Start(gctx); serr != nil {
			logging.For(logging.CategoryBoot).Warn("initial load incomplete: " + serr.Error())
		}
		program := tea.NewProgram(ui.NewDashboard(core), tea.WithContext(gctx))
		_, terr := program.Run()
		cancelled := gctx.Err() != nil
		stop() // quitting the UI shuts the link down too
		if cancelled {
			return nil
		}
		return terr
	})
	return g.Wait()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
