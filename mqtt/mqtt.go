// Package mqtt publishes encoder gestures and answers position queries over MQTT.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	statusPrefix  = "rotary/status/node/"
	controlPrefix = "rotary/control/node/"
)

// Client wraps the MQTT client with application-specific functionality.
type Client struct {
	client       paho.Client
	clientID     string
	enabled      bool
	logger       *slog.Logger
	onConnect    func()
	onDisconnect func()
	onGetPos     func(channel int)
}

// Config holds MQTT connection settings.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// Handlers holds callback functions for MQTT events.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func()
	// OnGetPos is called when a position query for channel arrives.
	OnGetPos func(channel int)
}

// Gesture is the JSON payload published for every gesture.
type Gesture struct {
	Channel  int    `json:"channel"`
	Gesture  string `json:"gesture"`
	Position int32  `json:"position"`
	Pressed  bool   `json:"pressed"`
	TimeMS   uint32 `json:"time_ms"`
}

// StatusTopic returns the topic gestures of kind on channel are published to.
func StatusTopic(clientID string, channel int, kind string) string {
	return fmt.Sprintf("%s%s/%d/%s", statusPrefix, clientID, channel, kind)
}

// ControlTopic returns the topic position queries arrive on.
func ControlTopic(clientID string) string {
	return controlPrefix + clientID + "/getpos"
}

// ParseGetPos extracts the channel from a position query.
func ParseGetPos(clientID, topic string, payload []byte) (int, bool) {
	if topic != ControlTopic(clientID) {
		return 0, false
	}
	ch, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil || ch < 0 {
		return 0, false
	}
	return ch, true
}

// New creates a new MQTT client. Returns a disabled no-op client if host is empty.
func New(cfg Config, clientID string, handlers Handlers, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		clientID:     clientID,
		logger:       logger.With("component", "mqtt"),
		onConnect:    handlers.OnConnect,
		onDisconnect: handlers.OnDisconnect,
		onGetPos:     handlers.OnGetPos,
	}

	if cfg.Host == "" {
		c.logger.Info("MQTT disabled (no host configured)")
		return c, nil
	}
	c.enabled = true

	var broker string
	var tlsConfig *tls.Config

	if cfg.CACert != "" || cfg.ClientCert != "" {
		if cfg.Port == 0 {
			cfg.Port = 8883
		}
		broker = fmt.Sprintf("ssl://%s:%d", cfg.Host, cfg.Port)

		var err error
		tlsConfig, err = buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("build TLS config: %w", err)
		}
	} else {
		if cfg.Port == 0 {
			cfg.Port = 1883
		}
		broker = fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
		c.logger.Info("MQTT using non-TLS connection", "broker", broker)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second).
		SetConnectionLostHandler(c.handleConnectionLost).
		SetOnConnectHandler(c.handleConnect).
		SetDefaultPublishHandler(c.handleMessage)

	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(opts)

	paho.ERROR = log.New(os.Stdout, "[MQTT ERROR] ", 0)
	paho.CRITICAL = log.New(os.Stdout, "[MQTT CRIT] ", 0)
	paho.WARN = log.New(os.Stdout, "[MQTT WARN] ", 0)

	return c, nil
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CACert)
		}
		tlsConfig.RootCAs = caPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Connect connects to the MQTT broker. If disabled, calls onConnect immediately.
func (c *Client) Connect() error {
	if !c.enabled {
		if c.onConnect != nil {
			c.onConnect()
		}
		return nil
	}

	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect: %w", token.Error())
	}
	return nil
}

// Disconnect disconnects from the MQTT broker. No-op if disabled.
func (c *Client) Disconnect() {
	if !c.enabled || c.client == nil {
		return
	}
	c.client.Disconnect(250)
}

// PublishGesture publishes g on its status topic. No-op if disabled.
func (c *Client) PublishGesture(g Gesture) {
	if !c.enabled {
		return
	}
	payload, err := json.Marshal(g)
	if err != nil {
		c.logger.Error("marshal gesture", "err", err)
		return
	}
	c.client.Publish(StatusTopic(c.clientID, g.Channel, g.Gesture), 0, false, payload)
}

// IsEnabled returns whether MQTT is enabled.
func (c *Client) IsEnabled() bool {
	return c.enabled
}

func (c *Client) handleConnect(client paho.Client) {
	c.logger.Info("MQTT connection established")
	topic := ControlTopic(c.clientID)
	if token := client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
		c.logger.Error("MQTT subscribe", "topic", topic, "err", token.Error())
	}
	if c.onConnect != nil {
		c.onConnect()
	}
}

func (c *Client) handleConnectionLost(client paho.Client, err error) {
	c.logger.Warn("MQTT connection lost", "err", err)
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
}

func (c *Client) handleMessage(client paho.Client, msg paho.Message) {
	ch, ok := ParseGetPos(c.clientID, msg.Topic(), msg.Payload())
	if !ok {
		c.logger.Debug("MQTT message ignored", "topic", msg.Topic())
		return
	}
	if c.onGetPos != nil {
		c.onGetPos(ch)
	}
}
