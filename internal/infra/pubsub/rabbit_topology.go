package pubsub

import (
	"os"

	"accounts/internal/errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

// rabbitServerURLEnv is the variable gocloud's rabbitpubsub opener reads.
const rabbitServerURLEnv = "RABBIT_SERVER_URL"

func rabbitServerURL() string {
	return os.Getenv(rabbitServerURLEnv)
}

// DeclareRabbitQueue makes sure a durable queue and a fanout exchange of the same name exist
// and are bound together. gocloud publishes to exchanges and consumes from queues, so both
// sides of a rabbit:// URL resolve to the same name.
func DeclareRabbitQueue(serverURL, name string) error {
	if serverURL == "" {
		return errors.Errorf("%s is required for the rabbit provider", rabbitServerURLEnv)
	}

	conn, err := amqp.Dial(serverURL)
	if err != nil {
		return errors.Wrap(err, "failed to connect to RabbitMQ")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open RabbitMQ channel")
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "failed to declare exchange %s", name)
	}

	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return errors.Wrapf(err, "failed to declare queue %s", name)
	}

	if err := ch.QueueBind(name, "", name, false, nil); err != nil {
		return errors.Wrapf(err, "failed to bind queue %s", name)
	}

	return nil
}
