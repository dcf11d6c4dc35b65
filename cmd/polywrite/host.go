package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zacy-Sokach/PolyWrite/internal/host"
	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/models"
)

var (
	hostAddr        string
	hostStepDelay   time.Duration
	hostSteps       int
	hostFail        map[string]string
	hostUnavailable []string
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "运行模拟的模型宿主",
	Long: `在本机启动一个模拟的模型宿主。首次调用某个模型时依次推送
checking、downloading 和 ready 状态，可以配置某些模型调用失败或不可用。`,
	RunE: runHost,
}

func init() {
	hostCmd.Flags().StringVar(&hostAddr, "addr", "", "监听地址（默认取自 host.url）")
	hostCmd.Flags().DurationVar(&hostStepDelay, "step-delay", 300*time.Millisecond, "每一步下载进度的间隔")
	hostCmd.Flags().IntVar(&hostSteps, "steps", 5, "下载进度的步数")
	hostCmd.Flags().StringToStringVar(&hostFail, "fail", nil, "让模型调用失败，例如 languageModel=\"quota exceeded\"")
	hostCmd.Flags().StringSliceVar(&hostUnavailable, "unavailable", nil, "标记为不可用的模型")
}

// simModels 根据命令行参数构造每个模型的模拟行为
func simModels(fail map[string]string, unavailable []string, steps int) (map[models.ID]host.SimModel, error) {
	out := make(map[models.ID]host.SimModel)
	for _, id := range models.All() {
		out[id] = host.SimModel{Steps: steps}
	}
	for name, msg := range fail {
		id, err := models.ParseID(name)
		if err != nil {
			return nil, err
		}
		m := out[id]
		m.FailWith = msg
		out[id] = m
	}
	for _, name := range unavailable {
		id, err := models.ParseID(name)
		if err != nil {
			return nil, err
		}
		m := out[id]
		m.Unavailable = true
		out[id] = m
	}
	return out, nil
}

// listenTarget 从宿主地址得到监听地址和路径
func listenTarget(rawURL, addr string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("解析宿主地址失败: %w", err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if addr == "" {
		addr = u.Host
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", "", fmt.Errorf("监听地址无效: %w", err)
	}
	return addr, path, nil
}

func runHost(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr, path, err := listenTarget(cfg.Host.URL, hostAddr)
	if err != nil {
		return err
	}
	behaviour, err := simModels(hostFail, hostUnavailable, hostSteps)
	if err != nil {
		return err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	log := logging.NewWithWriter(os.Stderr, level)

	sim := host.NewSimulator(host.SimOptions{
		StepDelay: hostStepDelay,
		Models:    behaviour,
		Logger:    log,
	})
	defer sim.Close()

	mux := http.NewServeMux()
	mux.Handle(path, host.NewServer(sim, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("模拟宿主已启动", map[string]interface{}{"addr": addr, "path": path})
	fmt.Fprintf(cmd.OutOrStdout(), "模拟宿主监听 ws://%s%s\n", addr, path)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("宿主服务异常退出: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("关闭宿主服务超时", map[string]interface{}{"error": err.Error()})
	}
	log.Info("模拟宿主已停止", nil)
	return nil
}
