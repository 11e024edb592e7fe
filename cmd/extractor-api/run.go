package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/kubev2v/document-extractor/internal/analysis"
	apiserver "github.com/kubev2v/document-extractor/internal/api_server"
	"github.com/kubev2v/document-extractor/internal/config"
	"github.com/kubev2v/document-extractor/internal/notification"
	"github.com/kubev2v/document-extractor/internal/objectstore"
	"github.com/kubev2v/document-extractor/internal/service"
	"github.com/kubev2v/document-extractor/pkg/log"
	"github.com/kubev2v/document-extractor/pkg/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the document extractor api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
		if err != nil {
			logLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}

		logger := log.InitLog(logLvl, cfg.Service.LogFormat)
		defer func() { _ = logger.Sync() }()

		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting document extractor")
		defer zap.S().Info("document extractor stopped")
		zap.S().Infof("Using config: %s", cfg)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		extractor, err := newExtractionService(ctx, cfg)
		if err != nil {
			return err
		}

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalw("creating listener", "error", err)
			}

			server := apiserver.New(cfg.Service, extractor, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("Error running server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("creating metrics listener", "error", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalw("failed to run metrics server", "error", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

// newExtractionService builds the cloud clients once and wires them into the
// extraction pipeline.
func newExtractionService(ctx context.Context, cfg *config.Config) (*service.ExtractionService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws configuration: %w", err)
	}

	store, err := objectstore.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating object store: %w", err)
	}
	zap.S().Infow("object store initialized", "backend", store.Type(), "bucket", cfg.Storage.Bucket)

	features, err := analysis.ParseFeatureSet(cfg.Textract.FeatureTypes)
	if err != nil {
		return nil, err
	}

	textract := analysis.New(awsCfg, cfg.Textract.Endpoint)
	queue := notification.NewSQSQueue(awsCfg, cfg.Queue.URL, cfg.Queue.Endpoint)

	awaiter, err := newCompletionAwaiter(ctx, cfg.Queue, queue)
	if err != nil {
		return nil, err
	}

	return service.NewExtractionService(store, textract, awaiter, textract, service.ExtractionOptions{
		Bucket:    cfg.Storage.Bucket,
		KeyPrefix: cfg.Storage.KeyPrefix,
		Features:  features,
		Channel: analysis.NotificationChannel{
			TopicArn: cfg.Textract.SNSTopicArn,
			RoleArn:  cfg.Textract.RoleArn,
		},
		Timeout: cfg.Service.ExtractionTimeout.Duration,
	}), nil
}

func newCompletionAwaiter(ctx context.Context, cfg *config.QueueConfig, queue notification.Queue) (service.CompletionAwaiter, error) {
	opts := notification.Options{
		MaxAttempts: cfg.MaxAttempts,
		WaitTime:    cfg.WaitTime.Duration,
		PollDelay:   cfg.PollDelay.Duration,
	}

	if cfg.DispatchMode != config.DispatchModeShared {
		return notification.NewPoller(queue, opts, nil), nil
	}

	dispatcher := notification.NewDispatcher(queue, opts, nil)
	if err := metrics.RegisterPendingJobsCollector(dispatcher); err != nil {
		return nil, fmt.Errorf("registering pending jobs metric: %w", err)
	}
	go func() {
		if err := dispatcher.Run(ctx); err != nil {
			zap.S().Named("notification_dispatcher").Errorw("dispatcher stopped", "error", err)
		}
	}()

	return dispatcher, nil
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
