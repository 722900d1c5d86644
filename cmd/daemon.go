package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zpam/spamd/pkg/classifier"
	"github.com/zpam/spamd/pkg/config"
	"github.com/zpam/spamd/pkg/daemon/protocol"
	"github.com/zpam/spamd/pkg/daemon/scheduler"
	"github.com/zpam/spamd/pkg/profiler"
	"github.com/zpam/spamd/pkg/reporter"
)

var (
	daemonConfigFile string
	daemonNetwork    string
	daemonAddress    string
	daemonDebug      bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the spamd-compatible wire protocol daemon",
	Long: `Start the zpam daemon: a prefork scheduler of worker goroutines in
front of the spamd wire protocol (SYMBOLS/CHECK/REPORT/REPORT_IFSPAM/
PROCESS), the spamc-compatible alternative to the milter front-end.

Example usage:
  # Start the daemon with default config
  zpam daemon

  # Start on a custom address
  zpam daemon --network tcp --address 127.0.0.1:783`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(daemonConfigFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}

		if cmd.Flags().Changed("network") {
			cfg.Daemon.Network = daemonNetwork
		}
		if cmd.Flags().Changed("address") {
			cfg.Daemon.Address = daemonAddress
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %v", err)
		}

		log := logrus.New()
		if daemonDebug {
			log.SetLevel(logrus.DebugLevel)
		}

		svc, err := classifier.Build(cfg, classifier.Options{})
		if err != nil {
			return fmt.Errorf("failed to build classifier: %v", err)
		}

		reporterCfg := reporterConfigFromDaemon(cfg)
		protoSrv := &protocol.Server{
			Classifier: svc,
			Reporter:   reporterCfg,
			Log:        log,
		}

		pool := scheduler.New(scheduler.Config{
			MinChildren: cfg.Daemon.MinChildren,
			MaxChildren: cfg.Daemon.MaxChildren,
			MinIdle:     cfg.Daemon.MinIdle,
			MaxIdle:     cfg.Daemon.MaxIdle,
		}, protoSrv.HandleConn, log)

		listener, err := net.Listen(cfg.Daemon.Network, cfg.Daemon.Address)
		if err != nil {
			return fmt.Errorf("failed to create listener: %v", err)
		}
		defer listener.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		profileChan := make(chan os.Signal, 1)
		signal.Notify(profileChan, syscall.SIGUSR1)
		go func() {
			for range profileChan {
				profiler.PrintReport()
			}
		}()

		serverErr := make(chan error, 1)
		go func() {
			fmt.Printf("🫏 zpam daemon starting on %s://%s\n", cfg.Daemon.Network, cfg.Daemon.Address)
			fmt.Printf("⚡ pool: min %d, max %d children\n", cfg.Daemon.MinChildren, cfg.Daemon.MaxChildren)
			fmt.Printf("🚀 Press Ctrl+C to stop\n\n")
			serverErr <- pool.Serve(ctx, listener)
		}()

		select {
		case <-sigChan:
			fmt.Printf("\n🛑 Shutdown signal received, stopping daemon...\n")
			cancel()
			<-serverErr
			fmt.Printf("✅ daemon stopped\n")
		case err := <-serverErr:
			if err != nil && err != context.Canceled {
				return fmt.Errorf("daemon error: %v", err)
			}
		}

		return nil
	},
}

func reporterConfigFromDaemon(cfg *config.Config) reporter.Config {
	rc := reporter.DefaultConfig()
	rc.Threshold = float64(cfg.Detection.SpamThreshold) * 1.25
	return rc
}

func init() {
	daemonCmd.Flags().StringVarP(&daemonConfigFile, "config", "c", "", "Configuration file path (defaults to built-in detection config)")
	daemonCmd.Flags().StringVarP(&daemonNetwork, "network", "n", "", "Network type (tcp or unix)")
	daemonCmd.Flags().StringVarP(&daemonAddress, "address", "a", "", "Bind address (e.g., 127.0.0.1:783 or /tmp/zpam.sock)")
	daemonCmd.Flags().BoolVarP(&daemonDebug, "debug", "d", false, "Enable debug logging")

	rootCmd.AddCommand(daemonCmd)
}
