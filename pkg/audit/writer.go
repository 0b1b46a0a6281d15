package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// JSONWriter writes each event as a single line of JSON.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{writer: w}
}

func (w *JSONWriter) Write(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// CloudWatchAPI defines the CloudWatch Logs operations used.
type CloudWatchAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchWriter forwards events to a CloudWatch Logs stream.
type CloudWatchWriter struct {
	client        CloudWatchAPI
	logGroupName  string
	logStreamName string
}

func NewCloudWatchWriter(cfg aws.Config, logGroupName string, logStreamName string) *CloudWatchWriter {
	return NewCloudWatchWriterWithClient(cloudwatchlogs.NewFromConfig(cfg), logGroupName, logStreamName)
}

// NewCloudWatchWriterWithClient creates a writer with a custom client.
func NewCloudWatchWriterWithClient(client CloudWatchAPI, logGroupName string, logStreamName string) *CloudWatchWriter {
	return &CloudWatchWriter{
		client:        client,
		logGroupName:  logGroupName,
		logStreamName: logStreamName,
	}
}

func (w *CloudWatchWriter) Write(ctx context.Context, event Event) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err = w.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(w.logGroupName),
		LogStreamName: aws.String(w.logStreamName),
		LogEvents: []types.InputLogEvent{
			{
				Message:   aws.String(string(message)),
				Timestamp: aws.Int64(timestamp.UnixMilli()),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put audit log event: %w", err)
	}
	return nil
}

// MultiWriter writes every event to each writer, joining any errors.
type MultiWriter []Writer

func (m MultiWriter) Write(ctx context.Context, event Event) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
