package sink

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"AirNode/internal/model"
)

// publishTimeout bounds a single publish when ctx has no deadline.
const publishTimeout = 5 * time.Second

// MQTTSink publishes each reading as a retained JSON row.
type MQTTSink struct {
	client mqtt.Client
	topic  string
}

// DialMQTT connects to broker. The client keeps reconnecting in the background, so a
// broker that is down at startup only costs the readings published meanwhile.
func DialMQTT(cfg model.MQTTConfig) (*MQTTSink, error) {
	l := log.WithFields(log.Fields{"component": "mqtt", "broker": cfg.Broker})
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) { l.Info("connected") }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { l.WithError(err).Warn("connection lost") })

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "mqtt connect %s", cfg.Broker)
	}
	return NewMQTT(client, cfg.Topic), nil
}

// NewMQTT wraps an existing client.
func NewMQTT(client mqtt.Client, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic}
}

func (s *MQTTSink) Name() string { return "mqtt" }

// Dispatch publishes r with QoS 0, retained.
func (s *MQTTSink) Dispatch(ctx context.Context, r model.Reading) error {
	payload, err := json.Marshal(NewRow(r))
	if err != nil {
		return err
	}
	timeout := publishTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	token := s.client.Publish(s.topic, 0, true, payload)
	if !token.WaitTimeout(timeout) {
		return errors.Errorf("publish to %s timed out", s.topic)
	}
	return token.Error()
}

// Close disconnects, waiting briefly for in-flight work.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
