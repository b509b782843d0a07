package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const maxSQSDelay = 900 * time.Second

// SQSQueue implements Queue backed by AWS/LocalStack SQS.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	fifo     bool
}

// NewSQSQueue creates a queue wrapper around the provided SQS client.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("queue: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("queue: SQS queueURL cannot be empty")
	}
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Send enqueues a payload. On FIFO queues the dedupe key becomes the
// MessageDeduplicationId; standard queues get best-effort delay instead
// (FIFO does not support per-message delays, standard does not deduplicate).
func (q *SQSQueue) Send(ctx context.Context, body string, dedupeID string, delay time.Duration) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}
	if q.fifo {
		input.MessageGroupId = aws.String("reminders")
		if dedupeID != "" {
			input.MessageDeduplicationId = aws.String(dedupeID)
		}
	} else if delay > 0 {
		if delay > maxSQSDelay {
			delay = maxSQSDelay
		}
		input.DelaySeconds = int32(delay / time.Second)
	}

	_, err := q.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("queue: failed to send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	}

	output, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("queue: failed to receive SQS messages: %w", err)
	}

	messages := make([]Message, 0, len(output.Messages))
	for _, msg := range output.Messages {
		messages = append(messages, Message{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}

	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}

	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("queue: failed to delete SQS message: %w", err)
	}
	return nil
}
