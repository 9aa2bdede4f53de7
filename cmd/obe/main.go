// Command obe is the daemon entrypoint: startup flags only, no RPC control
// surface (an explicit non-goal).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/openbroadcast/obe/config"
	"github.com/openbroadcast/obe/engine"
	"github.com/openbroadcast/obe/logging"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the YAML program configuration")
	pflag.Parse()

	log := logging.For("cmd.obe")

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: obe --config <path>")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	h, err := engine.New(*cfg, nil)
	if err != nil {
		log.Error("engine init failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if stage, err := h.Start(ctx); err != nil {
		log.Error("engine start failed", "stage", stage, "err", err)
		os.Exit(1)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, log)
	}
	if cfg.StatusWSAddr != "" {
		go serveStatus(cfg.StatusWSAddr, h, log)
	}

	log.Info("obe started", "program", cfg.Program.Name)
	<-ctx.Done()
	log.Info("obe stopping")
	h.Stop()
}

func serveMetrics(addr string, log logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server failed", "err", err)
	}
}

func serveStatus(addr string, h *engine.Handle, log logging.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", h.Hub.ServeHTTP)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("status server failed", "err", err)
	}
}
