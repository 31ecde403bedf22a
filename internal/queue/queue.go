package queue

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/gryn010/inception/internal/util"
)

const (
	LinkQueue      = "link_queue"
	ResultExchange = "pubsub_exchange"

	retryDelayMs = 10000
)

// Queues lists every work queue the worker consumes.
var Queues = []string{LinkQueue}

// Publisher is the subset of *amqp091.Channel used for publishing.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// ResultTopic is the routing key async link results are published under.
func ResultTopic(projectID int64) string {
	return fmt.Sprintf("link.result.%d", projectID)
}

func Init() (*amqp091.Connection, error) {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnv("RABBITMQ_PORT"),
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares the result exchange and, for every queue name, the
// queue itself plus its _retry and _dlq companions. Messages in the retry
// queue are dead-lettered back to the work queue after a delay.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	if err := declareResultExchange(ch); err != nil {
		return err
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelayMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retryName, err)
		}
	}

	return nil
}

func declareResultExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ResultExchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
}

// PublishFIFO publishes a persistent JSON message to a declared work queue.
func PublishFIFO(ch Publisher, queueName string, data []byte) error {
	return ch.Publish(
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// PublishTopic publishes to the result exchange under topic.
func PublishTopic(ch Publisher, topic string, data []byte) error {
	return ch.Publish(
		ResultExchange,
		topic,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
