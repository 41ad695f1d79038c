package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/traderhub/account-service/pkg/kafka/consumer"
)

// UploadEventConsumer reads upload-completion notifications from the
// uploads topic.
type UploadEventConsumer struct {
	*consumer.Consumer
}

func NewUploadEventConsumer(consumer *consumer.Consumer) *UploadEventConsumer {
	return &UploadEventConsumer{consumer}
}

func (ec *UploadEventConsumer) ReadEvent(ctx context.Context) (kafka.Message, error) {
	msg, err := ec.Reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("UploadEventConsumer - ReadEvent - ec.Reader.FetchMessage: %w", err)
	}

	return msg, nil
}

func (ec *UploadEventConsumer) CommitEvent(ctx context.Context, event kafka.Message) error {
	err := ec.Reader.CommitMessages(ctx, event)
	if err != nil {
		return fmt.Errorf("UploadEventConsumer - CommitEvent - ec.Reader.CommitMessages: %w", err)
	}

	return nil
}

func (ec *UploadEventConsumer) Close() error {
	err := ec.Consumer.Close()
	if err != nil {
		return fmt.Errorf("UploadEventConsumer - Close: %w", err)
	}

	return nil
}
