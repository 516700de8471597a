// Package gatewaymqtt bridges the unified API contract onto MQTT:
// commands arrive on {prefix}/cmd, responses go to {prefix}/response,
// state changes are forwarded to {prefix}/event, and a retained status
// is published to {prefix}/status.
package gatewaymqtt

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"dmx-gateway/internal/api"
	"dmx-gateway/internal/coordinator"
	"dmx-gateway/internal/gatewayconfig"
	"dmx-gateway/internal/logger"
)

// Client is the MQTT façade over a coordinator.State.
type Client struct {
	cfg      *gatewayconfig.MQTTConfig
	api      *api.Handler
	state    *coordinator.State
	log      *logger.Log
	client   mqtt.Client
	stopChan chan struct{}
}

// NewClient builds a Client, defaulting TopicPrefix and ClientID if
// unset.
func NewClient(cfg *gatewayconfig.MQTTConfig, state *coordinator.State, log *logger.Log) *Client {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "dmx"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "dmx-gateway"
	}

	return &Client{
		cfg:      cfg,
		api:      api.NewHandler(state),
		state:    state,
		log:      log.Module("gatewaymqtt"),
		stopChan: make(chan struct{}),
	}
}

// Start connects to the broker, subscribes to the command topic, and
// begins forwarding coordinator state changes as events.
func (c *Client) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetClientID(c.cfg.ClientID).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqtt.NewClient(opts)
	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	go c.forwardEvents()

	c.log.With(logger.Fields{"broker": c.cfg.Broker, "prefix": c.cfg.TopicPrefix}).Info("mqtt client started")
	return nil
}

// Stop disconnects from the broker and stops the event forwarder.
func (c *Client) Stop() {
	close(c.stopChan)
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(1000)
	}
	c.log.Info("mqtt client stopped")
}

func (c *Client) onConnect(client mqtt.Client) {
	c.log.Info("mqtt connected")

	cmdTopic := c.cfg.TopicPrefix + "/cmd"
	client.Subscribe(cmdTopic, 1, c.handleCommand)
	c.log.With(logger.Fields{"topic": cmdTopic}).Debug("mqtt subscribed")

	c.publishStatus()
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	c.log.With(logger.Fields{"error": err}).Warn("mqtt connection lost")
}

func (c *Client) handleCommand(client mqtt.Client, msg mqtt.Message) {
	c.log.With(logger.Fields{"topic": msg.Topic(), "payload": string(msg.Payload())}).Debug("mqtt command received")

	resp := c.api.HandleJSON(msg.Payload())
	client.Publish(c.cfg.TopicPrefix+"/response", 0, false, resp)
}

func (c *Client) forwardEvents() {
	updates := c.state.Subscribe()
	defer c.state.Unsubscribe(updates)

	for {
		select {
		case data, ok := <-updates:
			if !ok {
				return
			}
			c.publishEvent(data)
		case <-c.stopChan:
			return
		}
	}
}

func (c *Client) publishEvent(data []byte) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	c.client.Publish(c.cfg.TopicPrefix+"/event", 0, false, data)
}

// statusMessage is the typed payload published to {prefix}/status.
type statusMessage struct {
	Type string                     `json:"type"`
	Data coordinator.StatusResponse `json:"data"`
}

func (c *Client) publishStatus() {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	data, _ := json.Marshal(statusMessage{Type: "status", Data: c.state.GetStatus()})
	c.client.Publish(c.cfg.TopicPrefix+"/status", 0, true, data)
}
