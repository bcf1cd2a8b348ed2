package config

import "time"

const (
	EventsBrokerNone     = "none"
	EventsBrokerKafka    = "kafka"
	EventsBrokerRabbitMQ = "rabbitmq"
)

type EventsConfig struct {
	Broker         string        `yaml:"broker"`
	KafkaBrokers   []string      `yaml:"kafka_brokers"`
	KafkaTopic     string        `yaml:"kafka_topic"`
	RabbitMQURL    string        `yaml:"rabbitmq_url"`
	RabbitExchange string        `yaml:"rabbitmq_exchange"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

func loadEventsConfig() *EventsConfig {
	return &EventsConfig{
		Broker:         getEnv("EVENTS_BROKER", EventsBrokerNone),
		KafkaBrokers:   getEnvAsSlice("KAFKA_BROKERS", nil),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "nepway.ride-events"),
		RabbitMQURL:    getEnv("RABBITMQ_URL", ""),
		RabbitExchange: getEnv("RABBITMQ_EXCHANGE", "nepway.rides"),
		PublishTimeout: getEnvAsDuration("EVENTS_PUBLISH_TIMEOUT", 5*time.Second),
	}
}
