package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/domain/jobModel"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

// SQSQueue backs multi-node deployments. Visibility and long-poll settings
// mirror the in-memory queue so consumers behave identically against either.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	logger   *logger_i.Logger
}

func NewSQSQueue(ctx context.Context, queueURL string) (*SQSQueue, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &SQSQueue{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
		logger:   logger_i.NewLogger("SQS"),
	}, nil
}

func (q *SQSQueue) Enqueue(ctx context.Context, msg jobModel.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}

func (q *SQSQueue) Receive(ctx context.Context) (*Delivery, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(config.QueueReceiveWait / time.Second),
		VisibilityTimeout:   int32(config.QueueVisibilityTimeout / time.Second),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Messages) == 0 {
		return nil, nil
	}

	raw := out.Messages[0]
	var msg jobModel.Message
	if err := json.Unmarshal([]byte(aws.ToString(raw.Body)), &msg); err != nil {
		// a malformed message would redeliver forever; drop it
		q.logger.Error("dropping undecodable message", "error", err)
		_, delErr := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.queueURL),
			ReceiptHandle: raw.ReceiptHandle,
		})
		if delErr != nil {
			q.logger.Error("failed deleting undecodable message", "error", delErr)
		}
		return nil, nil
	}

	return &Delivery{Message: msg, Handle: aws.ToString(raw.ReceiptHandle)}, nil
}

func (q *SQSQueue) Extend(ctx context.Context, d *Delivery, timeout time.Duration) error {
	_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(q.queueURL),
		ReceiptHandle:     aws.String(d.Handle),
		VisibilityTimeout: int32(timeout / time.Second),
	})
	return err
}

func (q *SQSQueue) Delete(ctx context.Context, d *Delivery) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(d.Handle),
	})
	return err
}
