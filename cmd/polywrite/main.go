package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Zacy-Sokach/PolyWrite/internal/config"
	"github.com/Zacy-Sokach/PolyWrite/internal/host"
	"github.com/Zacy-Sokach/PolyWrite/internal/invoke"
	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/metrics"
	"github.com/Zacy-Sokach/PolyWrite/internal/status"
	"github.com/Zacy-Sokach/PolyWrite/internal/suggest"
	"github.com/Zacy-Sokach/PolyWrite/internal/tui"
	"github.com/Zacy-Sokach/PolyWrite/internal/utils"
)

var (
	Version = "dev"
)

var (
	cfgFile  string
	hostURL  string
	simulate bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "polywrite",
	Short: "PolyWrite - 本地模型写作助手",
	Long: `PolyWrite 在终端中调用本地模型宿主提供的校对、语言模型和摘要能力，
显示每个模型的就绪状态，并在编辑器中提供补全建议。

配置文件默认位于 $POLYWRITE_CONFIG_HOME、$XDG_CONFIG_HOME/polywrite 或 ~/.config/polywrite。`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认 "+defaultConfigDisplay()+"）")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出调试日志")

	rootCmd.Flags().StringVar(&hostURL, "host-url", "", "模型宿主地址（覆盖配置文件）")
	rootCmd.Flags().BoolVar(&simulate, "simulate", false, "使用进程内模拟宿主，不连接网络")

	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "程序发生panic: %v\n", r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// defaultConfigDisplay 帮助文本中显示的默认配置路径
func defaultConfigDisplay() string {
	path, err := config.Path()
	if err != nil {
		return filepath.Join("~", ".config", utils.AppName, utils.ConfigFileName)
	}
	return utils.DisplayPath(path)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigFrom(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if hostURL != "" {
		cfg.Host.URL = hostURL
	}
	if verbose {
		cfg.Log.Level = string(logging.LevelDebug)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}
	return cfg, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	// 界面独占终端，提前检查避免无谓地连接宿主
	if !tui.IsTerminal(os.Stdout) {
		return tui.ErrNoTerminal
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := newFileLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewRecorder(reg)
	store := status.NewStore(log, status.WithMetrics(rec))

	sender, statusText, closeHost, err := connectHost(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer closeHost()

	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, reg, log)
		defer shutdown()
	}

	app, err := tui.NewApp(tui.Deps{
		Store:      store,
		Dispatcher: invoke.NewDispatcher(sender, log, invoke.WithTimeout(cfg.Host.RequestTimeout), invoke.WithMetrics(rec)),
		Logger:     log,
		Suggest: suggest.Options{
			Delay:      cfg.Editor.Debounce,
			MinChars:   cfg.Editor.MinChars,
			LineHeight: cfg.Editor.LineHeight,
			TopOffset:  cfg.Editor.TopOffset,
			Metrics:    rec,
		},
		Status:  statusText,
		Version: Version,
	})
	if err != nil {
		return err
	}

	log.Info("界面启动", map[string]interface{}{"version": Version, "host": statusText})
	return app.Run(ctx)
}

func newFileLogger(cfg *config.Config) (*logging.Logger, error) {
	dir := cfg.Log.Dir
	if dir == "" {
		d, err := utils.LogDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(&logging.Config{Dir: dir, Level: level})
}

// connectHost 连接宿主或启动进程内模拟宿主
func connectHost(ctx context.Context, cfg *config.Config, store *status.Store, log *logging.Logger) (host.Sender, string, func(), error) {
	if simulate {
		sim := host.NewSimulator(host.SimOptions{Logger: log})
		lb := host.NewLoopback(sim, store)
		return lb, "simulated", func() {
			lb.Close()
			sim.Close()
		}, nil
	}

	retry := cfg.Host.Retry
	client, err := host.Dial(ctx, host.ClientOptions{
		URL:         cfg.Host.URL,
		DialTimeout: cfg.Host.DialTimeout,
		Retry:       &retry,
		Sink:        store,
		Logger:      log,
	})
	if err != nil {
		return nil, "", nil, fmt.Errorf("%w（可以用 polywrite host 启动模拟宿主，或使用 --simulate）", err)
	}
	return client, cfg.Host.URL, func() { client.Close() }, nil
}

// serveMetrics 在后台启动指标服务，返回关闭函数
func serveMetrics(addr string, reg *prometheus.Registry, log *logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("指标服务异常退出", err, map[string]interface{}{"addr": addr})
		}
	}()
	log.Info("指标服务已启动", map[string]interface{}{"addr": addr})

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
