// Package kafka provides the Kafka-backed channel used by the event bus in
// deployed environments.
package kafka

import (
	"errors"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

const brokersEnvVar = "KAFKA_BROKERS"

// brokersFromEnv reads the comma-separated broker list from the environment.
func brokersFromEnv() ([]string, error) {
	brokers := strings.Split(os.Getenv(brokersEnvVar), ",")
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, errors.New(brokersEnvVar + " environment variable is not set or empty")
	}

	return brokers, nil
}

// CreateChannel builds the publisher and subscriber pair for the product
// event stream. Each service gets its own consumer group, so the API and any
// downstream consumers each see every transition event. Consumers start from
// the oldest offset; transition events are small and replaying the stream is
// how a fresh consumer catches up on in-flight products.
func CreateChannel(logger watermill.LoggerAdapter, serviceName string) (*kafka.Publisher, *kafka.Subscriber, error) {
	brokers, err := brokersFromEnv()
	if err != nil {
		return nil, nil, err
	}

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         "cg-" + serviceName,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	// Producer waits for broker acknowledgement; a transition event that was
	// silently dropped would leave ledger consumers behind.
	publisherConfig := sarama.NewConfig()
	publisherConfig.Producer.Return.Successes = true

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	return publisher, subscriber, nil
}
