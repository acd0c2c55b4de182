package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	anttop "github.com/jondoveston/anttop/internal"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "anttop [server-url]",
	Short: "Terminal dashboard for ant load test results",
	Long: `anttop shows the results and resource metrics of ant load tests as
sampled terminal charts, together with the per-label statistics table.

Examples:
  anttop http://ant.lan:8880
  anttop --server-url http://ant.lan:8880 --key 0f3a...
  anttop view 0f3a... --sample-target 100
  anttop export 0f3a... --dir charts
  ANTTOP_SERVER_URL=http://ant.lan:8880 anttop states`,
	Args: cobra.MaximumNArgs(1),
}

var viewCmd = &cobra.Command{
	Use:   "view <load-test-key>",
	Short: "Print the charts and statistics of a load test",
	Args:  cobra.ExactArgs(1),
	RunE:  runView,
}

var tableCmd = &cobra.Command{
	Use:   "table <load-test-key>",
	Short: "Print the statistics table of a load test",
	Args:  cobra.ExactArgs(1),
	RunE:  runTable,
}

var exportCmd = &cobra.Command{
	Use:   "export <load-test-key>",
	Short: "Write the charts of a load test as PNG files",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the load test defined under load_test in the config file",
	Args:  cobra.NoArgs,
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop <load-test-key>",
	Short: "Stop a running load test",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "List load test executions",
	Args:  cobra.NoArgs,
	RunE:  runStates,
}

var rampCmd = &cobra.Command{
	Use:   "ramp",
	Short: "Preview the virtual user ramp-up curve of a load test",
	Args:  cobra.NoArgs,
	RunE:  runRamp,
}

func init() {
	// Assigned here rather than in the literal to break the rootCmd initialization cycle
	rootCmd.RunE = runDashboard

	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.String("server-url", "", "ant backend URL")
	pf.Int("timeout", anttop.REQUEST_TIMEOUT, "request timeout in seconds")
	pf.Int("sample-target", 0, "points per chart stream; 0 samples to max(sample-base, records/1000)")
	pf.Int("sample-base", anttop.SAMPLE_BASE, "minimum points per chart stream when sample-target is 0")
	pf.String("metrics-source", "ant", "where metric streams come from: ant, prometheus, exporter or auto")
	pf.String("prometheus-url", "", "Prometheus server URL")
	pf.String("exporter-url", "", "exporter metrics endpoint URL on the load generator")
	pf.String("metrics-addr", "", "serve anttop's own metrics on this address")

	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
	rootCmd.Flags().String("key", "", "load test key to show on start")
	rootCmd.Flags().String("log-file", "", "dashboard log file")

	flagKeys := map[string]string{
		"server_url":     "server-url",
		"timeout":        "timeout",
		"sample_target":  "sample-target",
		"sample_base":    "sample-base",
		"metrics_source": "metrics-source",
		"prometheus_url": "prometheus-url",
		"exporter_url":   "exporter-url",
		"metrics_addr":   "metrics-addr",
	}
	for key, flag := range flagKeys {
		if err := viper.BindPFlag(key, pf.Lookup(flag)); err != nil {
			log.Fatalf("failed to bind %s: %v", key, err)
		}
	}
	if err := viper.BindPFlag("log_file", rootCmd.Flags().Lookup("log-file")); err != nil {
		log.Fatalf("failed to bind log_file: %v", err)
	}

	viper.SetEnvPrefix("anttop")
	viper.AutomaticEnv()
	for key := range flagKeys {
		if err := viper.BindEnv(key); err != nil {
			log.Fatalf("failed to bind %s: %v", key, err)
		}
	}
	if err := viper.BindEnv("log_file"); err != nil {
		log.Fatalf("failed to bind log_file: %v", err)
	}

	viper.SetDefault("server_url", "http://localhost:"+anttop.DEFAULT_PORT)
	viper.SetDefault("log_file", "anttop.log")
	viper.SetDefault("prometheus_step", "5s")
	viper.SetDefault("exporter_prefixes", []string{"node_cpu", "node_memory", "node_network", "node_load"})
	viper.SetDefault("prometheus_queries", []map[string]string{
		{
			"label": "cpu",
			"query": `100 * (1 - avg(rate(node_cpu_seconds_total{mode="idle"}[1m])))`,
			"unit":  "%",
		},
		{
			"label": "memory",
			"query": `100 * (1 - node_memory_MemAvailable_bytes / node_memory_MemTotal_bytes)`,
			"unit":  "%",
		},
	})

	viewCmd.Flags().Int("width", 120, "output width in columns")
	viewCmd.Flags().Int("height", 16, "height of each chart pane")

	exportCmd.Flags().String("dir", ".", "directory the PNG files are written to")
	exportCmd.Flags().Int("width", 1024, "image width in pixels")
	exportCmd.Flags().Int("height", 400, "image height in pixels")

	statesCmd.Flags().Int("size", anttop.STATE_PAGE_SIZE, "number of executions to list")

	rampCmd.Flags().Int("virtual-users", 0, "virtual users")
	rampCmd.Flags().Int("duration", 0, "hold duration in seconds")
	rampCmd.Flags().Int("ramp-up-time", 0, "ramp-up time in seconds")
	rampCmd.Flags().Int("ramp-up-steps", 0, "ramp-up steps")
	rampCmd.Flags().Int("width", 80, "chart width in columns")

	rootCmd.AddCommand(viewCmd, tableCmd, exportCmd, startCmd, stopCmd, statesCmd, rampCmd)
}

func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config %s: %v", cfgFile, err)
	}
	log.Printf("Using config file: %s", viper.ConfigFileUsed())
}

func timeout() time.Duration {
	return time.Duration(viper.GetInt("timeout")) * time.Second
}

// connect resolves the backend from the positional argument or server_url
func connect(ctx context.Context, args []string) (*anttop.Client, error) {
	serverURL := viper.GetString("server_url")
	if len(args) == 1 && os.Getenv("ANTTOP_SERVER_URL") == "" && !rootCmd.PersistentFlags().Changed("server-url") {
		serverURL = args[0]
	}
	if !strings.Contains(serverURL, "://") {
		serverURL = "http://" + serverURL
	}
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	return anttop.ResolveServer(ctx, u, timeout())
}

func metricsOptions() (anttop.MetricsOptions, error) {
	var queries []anttop.PrometheusQuery
	if err := viper.UnmarshalKey("prometheus_queries", &queries); err != nil {
		return anttop.MetricsOptions{}, fmt.Errorf("invalid prometheus_queries: %w", err)
	}
	return anttop.MetricsOptions{
		Source:            viper.GetString("metrics_source"),
		PrometheusURL:     viper.GetString("prometheus_url"),
		PrometheusQueries: queries,
		PrometheusStep:    viper.GetDuration("prometheus_step"),
		ExporterURL:       viper.GetString("exporter_url"),
		ExporterPrefixes:  viper.GetStringSlice("exporter_prefixes"),
	}, nil
}

func newSession(ctx context.Context, client *anttop.Client, surfaces anttop.SurfaceFactory, instruments *anttop.Instruments) (*anttop.Session, error) {
	opts, err := metricsOptions()
	if err != nil {
		return nil, err
	}
	metrics, err := anttop.DetectMetricsSource(ctx, client, opts)
	if err != nil {
		return nil, err
	}
	fetcher := &anttop.Fetcher{Results: client, Metrics: metrics}
	return anttop.NewSession(fetcher, surfaces, viper.GetInt("sample_target"), viper.GetInt("sample_base"), instruments), nil
}

// serveMetrics exposes anttop's own metrics when metrics_addr is set
func serveMetrics(instruments *anttop.Instruments) {
	addr := viper.GetString("metrics_addr")
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", instruments.Handler())
	go func() {
		log.Printf("Serving metrics on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
}

func runDashboard(cmd *cobra.Command, args []string) error {
	// Handle --version flag first
	versionFlag, _ := cmd.Flags().GetBool("version")
	if versionFlag {
		fmt.Printf("anttop version %s\n", version)
		return nil
	}

	// The alt screen owns the terminal, so logs go to a file
	if logFile := viper.GetString("log_file"); logFile != "" {
		f, err := tea.LogToFile(logFile, "anttop")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}
	log.Printf("Starting anttop %s", version)

	ctx := context.Background()
	client, err := connect(ctx, args)
	if err != nil {
		return err
	}

	instruments := anttop.NewInstruments()
	serveMetrics(instruments)

	session, err := newSession(ctx, client, anttop.NewTermSurface, instruments)
	if err != nil {
		return err
	}

	key, _ := cmd.Flags().GetString("key")
	cache := &anttop.Cache{StateLister: client, Size: anttop.STATE_PAGE_SIZE}
	return anttop.Dashboard(cache, session, client, anttop.DashboardOptions{
		Key:     key,
		Timeout: timeout(),
	})
}

func runView(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	session, err := newSession(ctx, client, anttop.NewTermSurface, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Trigger(ctx, args[0]); err != nil {
		return err
	}

	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	fmt.Println(anttop.Vertical(
		anttop.GridPane("Results", session.ResultCharts(), width, height),
		anttop.GridPane("Metrics", session.MetricCharts(), width, height),
	))
	fmt.Println(anttop.RenderAggregateTable(session.Aggregate(), 0))
	return nil
}

func runTable(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	stats, err := client.FetchAggregate(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(anttop.RenderAggregateTable(stats, 0))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	ctx := context.Background()
	client, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	session, err := newSession(ctx, client, anttop.PNGSurfaces(dir, args[0]+"-"), nil)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Trigger(ctx, args[0]); err != nil {
		return err
	}

	for _, reg := range []*anttop.ChartRegistry{session.ResultCharts(), session.MetricCharts()} {
		for _, chart := range reg.Charts() {
			path, err := chart.Draw(width, height)
			if err != nil {
				log.Printf("Skipping chart %q: %v", chart.Label, err)
				continue
			}
			fmt.Println(path)
		}
	}
	return nil
}

func loadTestConfig() (anttop.LoadTestConfig, error) {
	var cfg anttop.LoadTestConfig
	if err := viper.UnmarshalKey("load_test", &cfg); err != nil {
		return cfg, fmt.Errorf("invalid load_test config: %w", err)
	}
	return cfg, nil
}

func printRamp(cfg anttop.LoadTestConfig, width int) error {
	points, err := cfg.RampCurve()
	if err != nil {
		return err
	}
	chart, err := anttop.RampChart(points, width, anttop.NewTermSurface())
	if err != nil {
		return err
	}
	defer chart.Destroy()
	out, err := chart.Draw(width, 14)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadTestConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := printRamp(cfg, 80); err != nil {
		log.Printf("No ramp-up preview: %v", err)
	}

	ctx := context.Background()
	client, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	ack, err := client.StartLoadTest(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Started load test %s\n", ack.Result)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	ack, err := client.StopLoadTest(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(ack.Message)
	return nil
}

func runStates(cmd *cobra.Command, args []string) error {
	size, _ := cmd.Flags().GetInt("size")
	ctx := context.Background()
	client, err := connect(ctx, nil)
	if err != nil {
		return err
	}
	cache := &anttop.Cache{StateLister: client, Size: size}
	states, err := cache.GetStates(ctx)
	if err != nil {
		return err
	}
	fmt.Println(anttop.RenderStatesTable(states, time.Local))
	return nil
}

func runRamp(cmd *cobra.Command, args []string) error {
	cfg, err := loadTestConfig()
	if err != nil {
		return err
	}
	// flags override the config file
	overrides := map[string]*string{
		"virtual-users": &cfg.VirtualUsers,
		"duration":      &cfg.Duration,
		"ramp-up-time":  &cfg.RampUpTime,
		"ramp-up-steps": &cfg.RampUpSteps,
	}
	for flag, field := range overrides {
		if cmd.Flags().Changed(flag) {
			v, _ := cmd.Flags().GetInt(flag)
			*field = cast.ToString(v)
		}
	}
	width, _ := cmd.Flags().GetInt("width")
	return printRamp(cfg, width)
}
