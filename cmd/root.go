package cmd

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/ridepool-sim/ridepool-sim/sim"
	"github.com/ridepool-sim/ridepool-sim/sim/routing"
)

var (
	// Scenario flags
	scenarioPath string  // YAML scenario file; flags below override it
	seed         int64   // Seed for arrival stream generation
	duration     float64 // Simulation horizon in virtual seconds
	tick         float64 // Lockstep tick in virtual seconds
	requestRate  float64 // Rider arrivals per virtual second
	capacity     int     // Seats per vehicle
	logLevel     string  // Log verbosity level

	// Matching flags
	detourMax      float64 // Hard detour ratio ceiling
	penaltyOnset   float64 // Detour ratio where the penalty starts
	penaltyCurve   string  // linear or stepped
	clusterRadius  float64 // Destination clustering radius in km
	insertionBound int     // Insertion positions searched per host, 0 = all

	// Routing flags
	osrmURL      string // OSRM base URL; empty uses the straight-line router
	googleAPIKey string // Google Directions API key, overrides OSRM
	routeCache   string // SQLite route cache path, empty disables persistence
	cacheSize    int    // In-memory route cache entries

	// Output flags
	metricsOut string // JSON metrics export path
	promListen string // Prometheus listen address, empty disables
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ridepool-sim",
	Short: "Discrete-event simulator comparing ride-pooling dispatch policies",
}

// runCmd executes the dual-policy simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dual-policy pooling simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg := loadScenario(cmd)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}

		router, cleanup := buildRouter()
		defer cleanup()

		model := sim.NewCostModel(router, cfg.CostConfig)
		runner, err := sim.NewDualRunner(cfg, model)
		if err != nil {
			logrus.Fatalf("Could not create run: %v", err)
		}

		if promListen != "" {
			sink := sim.NewPromSink(prometheus.DefaultRegisterer)
			runner.SetPromSink(sink)
			go servePrometheus(promListen)
		}

		startTime := time.Now()
		if err := runner.Start(); err != nil {
			logrus.Fatalf("Could not start run: %v", err)
		}
		<-runner.Done()

		pair := runner.Metrics()
		cmd.Println(sim.ComparisonReport(pair.FCFS, pair.Optimal))
		logrus.Infof("Run %s complete in %v (virtual %.0fs)", runner.RunID, time.Since(startTime), cfg.Duration)

		stats := router.Stats()
		logrus.Infof("Route cache: %d entries, %d hits, %d misses (%.1f%% hit rate)",
			stats.Size, stats.Hits, stats.Misses, stats.HitRate()*100)

		if metricsOut != "" {
			exportMetrics(runner)
		}
	},
}

// loadScenario resolves the scenario config: file first, then flag overrides.
func loadScenario(cmd *cobra.Command) *sim.Config {
	cfg := sim.DefaultConfig()
	if scenarioPath != "" {
		loaded, err := sim.LoadConfig(scenarioPath)
		if err != nil {
			logrus.Fatalf("Could not load scenario: %v", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("duration") {
		cfg.Duration = duration
	}
	if flags.Changed("tick") {
		cfg.Tick = tick
	}
	if flags.Changed("rate") {
		cfg.RequestRate = requestRate
	}
	if flags.Changed("capacity") {
		cfg.Capacity = capacity
	}
	if flags.Changed("detour-max") {
		cfg.DetourMax = detourMax
	}
	if flags.Changed("penalty-onset") {
		cfg.DetourPenaltyOnset = penaltyOnset
	}
	if flags.Changed("penalty-curve") {
		cfg.PenaltyCurve = sim.PenaltyCurve(penaltyCurve)
	}
	if flags.Changed("cluster-radius") {
		cfg.ClusterRadiusKm = clusterRadius
	}
	if flags.Changed("insertion-bound") {
		cfg.InsertionBound = insertionBound
	}
	return cfg
}

// buildRouter assembles the routing chain: an external oracle wrapped in
// retry and caching layers, or the straight-line router when none is
// configured.
func buildRouter() (*routing.CachedRouter, func()) {
	cleanup := func() {}

	var chained routing.Router
	switch {
	case googleAPIKey != "":
		g, err := routing.NewGoogleRouter(googleAPIKey)
		if err != nil {
			logrus.Fatalf("Could not create Google router: %v", err)
		}
		chained = routing.NewRetryRouter(g, 4)
	case osrmURL != "":
		chained = routing.NewRetryRouter(routing.NewOSRMRouter(osrmURL), 4)
	default:
		chained = &routing.PlaneRouter{SpeedMps: routing.DefaultUrbanSpeedMps, DetourFactor: 1.3}
	}

	if routeCache != "" {
		sc, err := routing.OpenSQLiteCache(routeCache, chained)
		if err != nil {
			logrus.Fatalf("Could not open route cache %s: %v", routeCache, err)
		}
		cleanup = func() { sc.Close() }
		chained = sc
	}
	return routing.NewCachedRouter(chained, cacheSize), cleanup
}

func servePrometheus(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logrus.Infof("Serving Prometheus metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logrus.Errorf("Prometheus listener failed: %v", err)
	}
}

func exportMetrics(runner *sim.DualRunner) {
	var snaps []sim.Snapshot
	for _, p := range runner.Snapshots() {
		snaps = append(snaps, p.FCFS, p.Optimal)
	}
	if err := sim.WriteSnapshotsJSON(metricsOut, snaps); err != nil {
		logrus.Errorf("Could not export metrics: %v", err)
		return
	}
	logrus.Infof("Metrics written to %s", metricsOut)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "YAML scenario file (flags override its values)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for arrival stream generation")
	runCmd.Flags().Float64Var(&duration, "duration", 3600, "Simulation horizon in virtual seconds")
	runCmd.Flags().Float64Var(&tick, "tick", 1.0, "Lockstep tick in virtual seconds")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	// Workload configs
	runCmd.Flags().Float64Var(&requestRate, "rate", 0.05, "Rider arrivals per virtual second")
	runCmd.Flags().IntVar(&capacity, "capacity", 3, "Seats per vehicle (2-4)")

	// Matching configs
	runCmd.Flags().Float64Var(&detourMax, "detour-max", 1.5, "Hard detour ratio ceiling")
	runCmd.Flags().Float64Var(&penaltyOnset, "penalty-onset", 1.25, "Detour ratio where the penalty starts")
	runCmd.Flags().StringVar(&penaltyCurve, "penalty-curve", "linear", "Detour penalty curve (linear, stepped)")
	runCmd.Flags().Float64Var(&clusterRadius, "cluster-radius", 25.0, "Destination clustering radius in km")
	runCmd.Flags().IntVar(&insertionBound, "insertion-bound", 8, "Insertion positions searched per host (0 = all)")

	// Routing configs
	runCmd.Flags().StringVar(&osrmURL, "osrm-url", "", "OSRM base URL (empty uses the straight-line router)")
	runCmd.Flags().StringVar(&googleAPIKey, "google-api-key", "", "Google Directions API key (overrides OSRM)")
	runCmd.Flags().StringVar(&routeCache, "route-cache", "", "SQLite route cache path (empty disables persistence)")
	runCmd.Flags().IntVar(&cacheSize, "cache-size", 10000, "In-memory route cache entries")

	// Output configs
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "JSON metrics export path")
	runCmd.Flags().StringVar(&promListen, "prom-listen", "", "Prometheus listen address (empty disables)")

	rootCmd.AddCommand(runCmd)
}
