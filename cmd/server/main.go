package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"gihan9a/morphcast/internal/config"
	"gihan9a/morphcast/internal/server"
	"gihan9a/morphcast/internal/tls"
)

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		glog.Fatalf("Error parsing configuration: %v", err)
	}
	defer glog.Flush()

	if cfg.TLS.Enabled && cfg.TLS.GenerateCert {
		if err := tls.EnsureCertificate(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hosts); err != nil {
			glog.Fatalf("Failed to set up TLS certificate: %v", err)
		}
	}

	morphServer, err := server.NewMorphServer(cfg)
	if err != nil {
		glog.Fatalf("Failed to create server: %v", err)
	}
	defer morphServer.Close()

	if err := morphServer.SetupWatchers(); err != nil {
		glog.Fatalf("Failed to set up batch watcher: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go morphServer.Run(ctx)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: morphServer.SetupRoutes(),
	}
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	if cfg.Server.BatchDir != "" {
		glog.Infof("[server]watching %s for batch files\n", cfg.Server.BatchDir)
	}
	if cfg.TLS.Enabled {
		glog.Infof("[server]morphcast running at https://localhost%s\n", httpServer.Addr)
		err = httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	} else {
		glog.Infof("[server]morphcast running at http://localhost%s\n", httpServer.Addr)
		err = httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		glog.Errorf("[server]%v\n", err)
	}
}
