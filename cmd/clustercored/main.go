package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxstream/clustercore/pkg/aas"
	"github.com/fluxstream/clustercore/pkg/client"
	"github.com/fluxstream/clustercore/pkg/clusterstate"
	"github.com/fluxstream/clustercore/pkg/config"
	"github.com/fluxstream/clustercore/pkg/dedup"
	"github.com/fluxstream/clustercore/pkg/dslc"
	"github.com/fluxstream/clustercore/pkg/errorstore"
	"github.com/fluxstream/clustercore/pkg/log"
	"github.com/fluxstream/clustercore/pkg/metrics"
	"github.com/fluxstream/clustercore/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "clustercored",
	Short: "clustercore - data stream lifecycle and adaptive allocation controller",
	Long: `clustercored runs the Data Stream Lifecycle Controller (DSLC) and
Adaptive Allocation Scaler (AAS): a pair of cluster-level control loops
coordinated by Raft, each dispatching administrative actions to an
external data/inference layer through a generic action client.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"clustercored version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(applyCmd)

	clusterCmd.AddCommand(clusterInitCmd)
	clusterCmd.AddCommand(clusterJoinCmd)
	clusterCmd.AddCommand(clusterAddVoterCmd)
	clusterCmd.AddCommand(clusterInfoCmd)

	for _, cmd := range []*cobra.Command{clusterInitCmd, clusterJoinCmd} {
		cmd.Flags().String("node-id", "", "Raft server ID for this node (required)")
		cmd.Flags().String("bind-addr", "", "Raft transport bind address")
		cmd.Flags().String("data-dir", "", "Directory for BoltDB and Raft log storage")
		cmd.Flags().String("action-client-addr", "", "Address of the external action-dispatch gRPC endpoint")
		cmd.Flags().String("metrics-addr", "", "Address to serve /metrics, /health, /ready, /live on")
		_ = cmd.MarkFlagRequired("node-id")
	}

	clusterAddVoterCmd.Flags().String("leader-addr", "127.0.0.1:9090", "Metrics/admin address of the current leader (informational only; adding a voter is performed on the leader node itself)")
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage this clustercore node's participation in the Raft quorum",
}

var clusterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a brand-new single-node cluster and start serving",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, func(svc *clusterstate.Service) error {
			return svc.Bootstrap()
		})
	},
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join",
	Short: "Start this node's Raft instance so it can be added to an existing cluster",
	Long: `join brings up this node's own Raft instance and begins serving,
but does not contact an existing leader itself. Request this node's
addition to the quorum from the current leader (see "cluster add-voter"
run against that leader) once this process is up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd, func(svc *clusterstate.Service) error {
			return svc.Join()
		})
	},
}

var clusterAddVoterCmd = &cobra.Command{
	Use:   "add-voter NODE_ID ADDR",
	Short: "Instruct this node's leader to add another server to the Raft quorum",
	Long: `add-voter must be run against a process that already holds
leadership; it has no effect against a follower. clustercored exposes
no separate admin RPC for this, so running it as a local subcommand
against the leader's own data directory is not supported. Use the
leader's HTTP/metrics surface or an operator-side Raft tool to invoke
clusterstate.Service.AddVoter directly.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("add-voter must be issued against the running leader process; see clusterstate.Service.AddVoter")
	},
}

var clusterInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display this node's view of cluster membership",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Query a running node's /health and /metrics endpoints for leadership and peer count.")
		return nil
	},
}

type bootstrapFunc func(*clusterstate.Service) error

func runDaemon(cmd *cobra.Command, bootstrap bootstrapFunc) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	svc := clusterstate.New(clusterstate.Config{
		NodeID:   cfg.NodeID,
		BindAddr: cfg.BindAddr,
		DataDir:  cfg.DataDir,
	}, store, log.Logger)

	if err := bootstrap(svc); err != nil {
		return fmt.Errorf("start raft: %w", err)
	}
	fmt.Println("raft started, node_id:", cfg.NodeID)

	actionClient, err := client.Dial(cfg.ActionClientAddr, log.Logger)
	if err != nil {
		return fmt.Errorf("dial action client: %w", err)
	}
	defer actionClient.Close()

	errStore := errorstore.New()
	dslcDedup := dedup.New()

	controller := dslc.New(svc, actionClient, errStore, dslcDedup, cfg.TargetMergePolicy(), log.Logger)
	scaler := aas.New(svc, actionClient, aas.Config{PollInterval: cfg.PollInterval}, log.Logger)

	stopListener := make(chan struct{})
	go runDSLCListener(svc, controller, stopListener)

	if err := scaler.Start(); err != nil {
		return fmt.Errorf("start aas: %w", err)
	}

	collector := metrics.NewCollector(svc, errStore, map[string]*dedup.Deduplicator{"dslc": dslcDedup})
	collector.Start()

	metrics.RegisterComponent("raft", true, "started")
	metrics.RegisterComponent("dslc", true, "listening")
	metrics.RegisterComponent("aas", true, "started")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())

	errCh := make(chan error, 1)
	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	fmt.Printf("metrics/health endpoints listening on http://%s\n", cfg.MetricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("shutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}

	close(stopListener)
	scaler.Stop()
	collector.Stop()
	if err := svc.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Println("shutdown complete")
	return nil
}

// runDSLCListener re-runs DSLC.Run every time clusterstate publishes a
// change event, matching spec.md §4.3's "invoked by the cluster-state
// applier thread" model: here the applier thread is clusterstate's own
// Raft FSM goroutine, and Run is invoked from this dedicated listener
// goroutine instead, since the FSM itself must not block on dispatch.
func runDSLCListener(svc *clusterstate.Service, controller *dslc.DSLC, stop chan struct{}) {
	sub := svc.Subscribe()
	defer svc.Unsubscribe(sub)

	for {
		select {
		case _, ok := <-sub:
			if !ok {
				return
			}
			state, err := svc.State()
			if err != nil {
				log.Logger.Error().Err(err).Msg("failed to read cluster state for dslc run")
				continue
			}
			controller.Run(state)
		case <-stop:
			return
		}
	}
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}

	if v, _ := cmd.Flags().GetString("node-id"); v != "" {
		cfg.NodeID = v
	}
	if v, _ := cmd.Flags().GetString("bind-addr"); v != "" {
		cfg.BindAddr = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("action-client-addr"); v != "" {
		cfg.ActionClientAddr = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	if cfg.NodeID == "" {
		return config.Config{}, fmt.Errorf("node-id is required")
	}
	return cfg, nil
}
