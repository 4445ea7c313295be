// Package mqttlight exposes the light over MQTT: JSON commands arrive on
// <topic>/set and the requested state is published, retained, on
// <topic>/state.
package mqttlight

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-lightstrip/internal/command"
)

type Config struct {
	Broker   string // tcp://host:1883
	ClientID string // empty picks a random id
	Topic    string
	Username string
	Password string
	QoS      byte
}

func (c Config) SetTopic() string   { return c.Topic + "/set" }
func (c Config) StateTopic() string { return c.Topic + "/state" }

type Client struct {
	cfg    Config
	sub    command.Submitter
	client mqtt.Client

	// publish is swapped out in tests.
	publish func(topic string, payload []byte)
}

func NewClient(cfg Config, sub command.Submitter) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "lightstrip-" + uuid.NewString()[:8]
	}
	return &Client{cfg: cfg, sub: sub}
}

// Run connects, serves commands until ctx is done, then disconnects.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	c.Stop()
	return nil
}

func (c *Client) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetUsername(c.cfg.Username).
		SetPassword(c.cfg.Password).
		SetClientID(c.cfg.ClientID).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetOrderMatters(true).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetWill(c.cfg.Topic+"/availability", "offline", c.cfg.QoS, true)

	c.client = mqtt.NewClient(opts)
	c.publish = func(topic string, payload []byte) {
		token := c.client.Publish(topic, c.cfg.QoS, true, payload)
		go func() {
			select {
			case <-ctx.Done():
			case <-token.Done():
				if token.Error() != nil {
					log.Error().Err(token.Error()).Str("topic", topic).Msg("mqtt publish")
				}
			}
		}()
	}

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return errors.Wrap(token.Error(), "mqtt connect")
		}
	case <-ctx.Done():
		return errors.New("context canceled")
	}
	log.Info().Str("broker", c.cfg.Broker).Str("client_id", c.cfg.ClientID).Msg("mqtt connected")
	return nil
}

func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		c.publish(c.cfg.Topic+"/availability", []byte("offline"))
		c.client.Disconnect(500)
	}
}

func (c *Client) connectHandler(cl mqtt.Client) {
	token := cl.Subscribe(c.cfg.SetTopic(), c.cfg.QoS, c.messageHandler)
	go func() {
		<-token.Done()
		if token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", c.cfg.SetTopic()).Msg("mqtt subscribe")
			return
		}
		log.Debug().Str("topic", c.cfg.SetTopic()).Msg("mqtt subscribed")
		c.publish(c.cfg.Topic+"/availability", []byte("online"))
		c.PublishState()
	}()
}

func (c *Client) connectLostHandler(_ mqtt.Client, err error) {
	log.Warn().Err(err).Msg("mqtt connection lost")
}

func (c *Client) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	log.Debug().Str("topic", msg.Topic()).Bytes("payload", msg.Payload()).Msg("mqtt message")
	if err := c.apply(msg.Payload()); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("mqtt command rejected")
	}
	c.PublishState()
}

// apply accepts a single command object or an array of them.
func (c *Client) apply(payload []byte) error {
	var batch []command.Command
	if len(payload) > 0 && payload[0] == '[' {
		if err := json.Unmarshal(payload, &batch); err != nil {
			return errors.Wrap(err, "decode command batch")
		}
	} else {
		cmd, err := command.Parse(payload)
		if err != nil {
			return err
		}
		batch = []command.Command{cmd}
	}
	for _, cmd := range batch {
		if err := command.Dispatch(c.sub, cmd); err != nil {
			return err
		}
	}
	return nil
}

// PublishState sends the current snapshot on the state topic.
func (c *Client) PublishState() {
	if c.publish == nil {
		return
	}
	b, err := json.Marshal(c.sub.Snapshot())
	if err != nil {
		log.Error().Err(err).Msg("encode state")
		return
	}
	c.publish(c.cfg.StateTopic(), b)
}
