// Package notify consumes S3 object-created notifications from SQS and feeds
// them to the transform, one record per invocation. Failed messages are left
// on the queue so the transport's visibility timeout drives redelivery.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/oniichan80000/image-resizer/internal/domain"
	"github.com/oniichan80000/image-resizer/internal/service"
)

// SQSClient is the subset of the SQS API the consumer needs.
type SQSClient interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Consumer struct {
	client    SQSClient
	queueURL  string
	transform service.TransformService
	log       *zap.Logger
}

func NewConsumer(client SQSClient, queueURL string, transform service.TransformService, log *zap.Logger) *Consumer {
	return &Consumer{
		client:    client,
		queueURL:  queueURL,
		transform: transform,
		log:       log,
	}
}

// Run long-polls the queue until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("Notification consumer started", zap.String("queue_url", c.queueURL))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("Failed to receive messages", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range output.Messages {
			if err := c.handle(ctx, msg); err != nil {
				// Leave the message on the queue for redelivery.
				c.log.Error("Failed to process notification", zap.Error(err))
				continue
			}
			c.delete(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg sqstypes.Message) error {
	if msg.Body == nil {
		return nil
	}

	notifications, err := parseEvent([]byte(*msg.Body))
	if err != nil {
		c.log.Warn("Discarding unparseable notification", zap.Error(err))
		return nil
	}

	for _, n := range notifications {
		if err := c.transform.Process(ctx, n); err != nil {
			return err
		}
	}

	return nil
}

func (c *Consumer) delete(ctx context.Context, msg sqstypes.Message) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		c.log.Error("Failed to delete message", zap.Error(err))
	}
}

// parseEvent unmarshals an S3 event payload. Bucket-configuration test
// events and other non-record payloads yield an empty slice, which callers
// treat as a successfully handled no-op.
func parseEvent(body []byte) ([]domain.Notification, error) {
	var event events.S3Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(event.Records))
	for _, record := range event.Records {
		notifications = append(notifications, domain.Notification{
			Bucket: record.S3.Bucket.Name,
			Key:    record.S3.Object.Key,
		})
	}

	return notifications, nil
}
