package vagkoll

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// DefaultMQTTTopic is the event topic tree: one subtopic per county plus
// a wildcard for everything.
const DefaultMQTTTopic = "vagkoll/events/#"

// MQTTStream consumes live events from an MQTT broker instead of the SSE
// endpoint. Deployments that fan the feed out through a broker point the
// daemon here; the merge path downstream is identical.
type MQTTStream struct {
	Host     string
	User     string
	Pass     string
	ClientID string
	Topic    string
}

var _ LiveStream = (*MQTTStream)(nil)

// Run connects, subscribes and blocks until the connection is lost or ctx
// ends. Paho runs its own reconnect machinery; we disable it so connection
// loss surfaces to the caller the same way an SSE disconnect does.
func (m *MQTTStream) Run(ctx context.Context, handler func(payload []byte)) error {
	topic := m.Topic
	if topic == "" {
		topic = DefaultMQTTTopic
	}

	lost := make(chan error, 1)

	messageHandler := func(client mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.Host)
	opts.SetClientID(m.ClientID)
	opts.SetUsername(m.User)
	opts.SetPassword(m.Pass)
	opts.SetAutoReconnect(false)
	opts.OnConnect = func(client mqtt.Client) {
		logrus.WithField("topic", topic).Info("📡 connected to MQTT")
		if token := client.Subscribe(topic, 0, messageHandler); token.Wait() && token.Error() != nil {
			select {
			case lost <- fmt.Errorf("subscribe %s: %w", topic, token.Error()):
			default:
			}
		}
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		select {
		case lost <- fmt.Errorf("mqtt connection lost: %w", err):
		default:
		}
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer client.Disconnect(250)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-lost:
		return err
	}
}
