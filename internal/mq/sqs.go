package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/jjudge-oj/judge-worker/config"
)

const (
	sqsWaitTimeSeconds       = 20
	sqsVisibilityTimeoutSecs = 60
	sqsMaxMessages           = 1
)

// SQSClient wraps the AWS SDK v2 SQS client. It is the default Backend
// (config.QueueBackend == "sqs").
type SQSClient struct {
	client *sqs.Client

	mu       sync.Mutex
	queueURL map[string]string // queue name -> resolved URL, memoized
}

// NewSQSClient constructs an SQS client from AWS config.
func NewSQSClient(ctx context.Context, awsCfg config.AWSConfig) (*SQSClient, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(awsCfg.Region))
	if awsCfg.AccessKeyID != "" && awsCfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsCfg.AccessKeyID, awsCfg.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, err
	}

	return &SQSClient{
		client:   sqs.NewFromConfig(cfg),
		queueURL: make(map[string]string),
	}, nil
}

func (s *SQSClient) resolveQueueURL(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	if url, ok := s.queueURL[name]; ok {
		s.mu.Unlock()
		return url, nil
	}
	s.mu.Unlock()

	out, err := s.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("sqs: resolve queue url for %s: %w", name, err)
	}

	s.mu.Lock()
	s.queueURL[name] = aws.ToString(out.QueueUrl)
	s.mu.Unlock()
	return aws.ToString(out.QueueUrl), nil
}

// Publish sends data to the named queue. When attrs carries a "dedupKey",
// it becomes the MessageDeduplicationId and the MessageGroupId is set to
// "results" (FIFO queue semantics).
func (s *SQSClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	url, err := s.resolveQueueURL(ctx, channel)
	if err != nil {
		return "", err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(string(data)),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(v),
			}
		}
	}
	if dedupKey, ok := attrs["dedupKey"]; ok {
		input.MessageDeduplicationId = aws.String(dedupKey)
		input.MessageGroupId = aws.String("results")
	}

	out, err := s.client.SendMessage(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sqs: send message to %s: %w", channel, err)
	}
	return aws.ToString(out.MessageId), nil
}

// Subscribe long-polls channel until ctx is cancelled, invoking handler for
// each delivery and deleting the message only on success.
func (s *SQSClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	url, err := s.resolveQueueURL(ctx, channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		out, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(url),
			MaxNumberOfMessages: sqsMaxMessages,
			WaitTimeSeconds:     sqsWaitTimeSeconds,
			VisibilityTimeout:   sqsVisibilityTimeoutSecs,
			MessageAttributeNames: []string{"All"},
		})
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			continue
		}

		for _, m := range out.Messages {
			message := Message{
				ID:         aws.ToString(m.MessageId),
				Data:       []byte(aws.ToString(m.Body)),
				Attributes: attributesOf(m),
			}
			if err := handler(ctx, message); err != nil {
				continue // visibility timeout expiry redelivers
			}
			_, _ = s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(url),
				ReceiptHandle: m.ReceiptHandle,
			})
		}
	}
}

// Close is a no-op: the SQS client holds no long-lived connection.
func (s *SQSClient) Close() error { return nil }

func attributesOf(m types.Message) map[string]string {
	if len(m.MessageAttributes) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(m.MessageAttributes))
	for k, v := range m.MessageAttributes {
		attrs[k] = aws.ToString(v.StringValue)
	}
	return attrs
}
