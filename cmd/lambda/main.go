// Lambda deployment of the resize transform, triggered directly by S3
// object-created events on the upload bucket.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/oniichan80000/image-resizer/internal/config"
	"github.com/oniichan80000/image-resizer/internal/domain"
	"github.com/oniichan80000/image-resizer/internal/repository"
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

	awsCfg, err := repository.LoadAWSConfig(context.Background(), &cfg.S3)
	if err != nil {
		log.Fatal("Failed to load AWS config", zap.Error(err))
	}

	storage := repository.NewS3Repository(awsCfg, &cfg.S3, log)
	transform := service.NewTransformService(storage, cfg.S3.ProcessedBucket, log)

	lambda.Start(func(ctx context.Context, event events.S3Event) error {
		for _, record := range event.Records {
			n := domain.Notification{
				Bucket: record.S3.Bucket.Name,
				Key:    record.S3.Object.Key,
			}
			if err := transform.Process(ctx, n); err != nil {
				log.Error("Transform failed",
					zap.String("bucket", n.Bucket),
					zap.String("key", n.Key),
					zap.Error(err))
				return err
			}
		}
		return nil
	})
}
