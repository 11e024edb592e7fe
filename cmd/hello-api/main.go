package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/kubev2v/document-extractor/internal/api_server"
	"github.com/kubev2v/document-extractor/internal/config"
	"github.com/kubev2v/document-extractor/pkg/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		zap.S().Fatalw("reading configuration", "error", err)
	}

	logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
	if err != nil {
		logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger := log.InitLog(logLvl, cfg.Service.LogFormat)
	defer func() { _ = logger.Sync() }()

	undo := zap.ReplaceGlobals(logger)
	defer undo()

	hostname, err := os.Hostname()
	if err != nil {
		zap.S().Fatalw("reading host name", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	listener, err := newListener(cfg.Service.HelloAddress)
	if err != nil {
		zap.S().Fatalw("creating listener", "error", err)
	}

	server := apiserver.NewHello(cfg.Service, hostname, listener)
	if err := server.Run(ctx); err != nil {
		zap.S().Fatalw("Error running server", "error", err)
	}
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
