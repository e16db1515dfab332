package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/oniichan80000/image-resizer/internal/config"
	"github.com/oniichan80000/image-resizer/internal/notify"
	"github.com/oniichan80000/image-resizer/internal/repository"
	"github.com/oniichan80000/image-resizer/internal/server"
	"github.com/oniichan80000/image-resizer/internal/service"
	"github.com/oniichan80000/image-resizer/pkg/logger"
)

func main() {
	log, err := logger.New()
	if err != nil {
		os.Stderr.WriteString("CRITICAL: Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := repository.LoadAWSConfig(ctx, &cfg.S3)
	if err != nil {
		log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	storage := repository.NewS3Repository(awsCfg, &cfg.S3, log)
	intents := service.NewIntentService(storage, log)

	srv := server.New(cfg, intents, log)

	// The consumer is optional: lambda deployments trigger the transform
	// directly and leave SQS_QUEUE_URL unset.
	if cfg.SQS.QueueURL != "" {
		transform := service.NewTransformService(storage, cfg.S3.ProcessedBucket, log)
		consumer := notify.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.SQS.QueueURL, transform, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("Notification consumer stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := srv.Run(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
