package pdsingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Config"
	pdserrors "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Errors"
	logger "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Logger"
	metrics "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Metrics"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
	api_models "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models/api"
)

const (
	KindDose    = "dose"
	KindWeights = "weights"

	transportMQTT  = "mqtt"
	publishTimeout = 5 * time.Second
)

var ErrNotConnected = errors.New("mqtt client not connected")

// TelemetryRecorder is the ingestion service the bridge feeds
type TelemetryRecorder interface {
	RecordDoseEvent(ctx context.Context, req api_models.DoseEventRequest) (*pdsmodels.DoseEvent, error)
	RecordWeightReadings(ctx context.Context, req api_models.WeightBatchRequest) (int, error)
}

type message struct {
	serial     string
	kind       string
	payload    []byte
	receivedAt time.Time
}

// Ingestor bridges device telemetry published over MQTT into the same
// ingestion service the HTTP endpoints use, and publishes queued commands
// back to devices.
type Ingestor struct {
	cfg       config.MQTTConfig
	brokerURL string
	recorder  TelemetryRecorder

	mqttClient mqtt.Client
	msgCh      chan message
	mu         sync.RWMutex
	closed     bool
	wg         sync.WaitGroup
	logger     *logger.Logger
}

func New(cfg config.MQTTConfig, brokerURL string, recorder TelemetryRecorder, log *logger.Logger) *Ingestor {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Ingestor{
		cfg:       cfg,
		brokerURL: brokerURL,
		recorder:  recorder,
		msgCh:     make(chan message, queueSize),
		logger:    log.WithComponent("mqtt-bridge"),
	}
}

// Topics returns the subscriptions, wrapped in the shared group when set
func (i *Ingestor) Topics() []string {
	topics := []string{
		fmt.Sprintf("%s/+/%s", i.cfg.TopicPrefix, KindDose),
		fmt.Sprintf("%s/+/%s", i.cfg.TopicPrefix, KindWeights),
	}
	if i.cfg.SharedGroup != "" {
		for n, t := range topics {
			topics[n] = fmt.Sprintf("$share/%s/%s", i.cfg.SharedGroup, t)
		}
	}
	return topics
}

func (i *Ingestor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.brokerURL).
		SetClientID(i.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.KeepAlive).
		SetPingTimeout(i.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.BrokerUser != "" {
		opts.SetUsername(i.cfg.BrokerUser)
		opts.SetPassword(i.cfg.BrokerPass)
	}

	if i.cfg.UseTLS {
		tlsCfg, err := tlsConfig(i.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		for _, topic := range i.Topics() {
			i.logger.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
			if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
				i.logger.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
			}
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.worker(ctx)
	}()

	return nil
}

// Stop disconnects, then drains whatever is already queued
func (i *Ingestor) Stop() {
	if i.mqttClient != nil && i.mqttClient.IsConnected() {
		i.mqttClient.Disconnect(500)
	}

	i.mu.Lock()
	if !i.closed {
		i.closed = true
		close(i.msgCh)
	}
	i.mu.Unlock()

	i.wg.Wait()
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	serial, kind, err := ParseTopic(i.cfg.TopicPrefix, m.Topic())
	if err != nil {
		i.logger.Logger.Warn().Str("topic", m.Topic()).Msg("Invalid topic format")
		metrics.MQTTMessages.WithLabelValues("unknown", "rejected").Inc()
		return
	}

	i.enqueue(message{
		serial:     serial,
		kind:       kind,
		payload:    m.Payload(),
		receivedAt: time.Now().UTC(),
	})
}

// enqueue never blocks the paho callback; a full queue drops the message
// and tells the device.
func (i *Ingestor) enqueue(msg message) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return false
	}

	select {
	case i.msgCh <- msg:
		return true
	default:
		metrics.MQTTMessages.WithLabelValues(msg.kind, "dropped").Inc()
		i.logger.Logger.Warn().Str("serial", msg.serial).Str("kind", msg.kind).Msg("Ingest queue full, dropping message")
		i.publishError(msg.serial, "queue_full", "server busy, message dropped")
		return false
	}
}

// worker runs until Stop closes the queue. Messages are already acked to
// the broker, so queued ones are handled even after ctx is cancelled.
func (i *Ingestor) worker(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for msg := range i.msgCh {
		i.handle(ctx, msg)
	}
}

func (i *Ingestor) handle(ctx context.Context, msg message) {
	timeout := i.cfg.HandleTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	switch msg.kind {
	case KindDose:
		err = i.handleDose(ctx, msg)
	case KindWeights:
		err = i.handleWeights(ctx, msg)
	default:
		err = pdserrors.Validation("unsupported message kind %q", msg.kind)
	}

	if err != nil {
		metrics.MQTTMessages.WithLabelValues(msg.kind, "failed").Inc()
		i.logger.Logger.Warn().Err(err).Str("serial", msg.serial).Str("kind", msg.kind).Msg("MQTT message rejected")
		i.publishError(msg.serial, pdserrors.KindOf(err).String(), err.Error())
		return
	}
	metrics.MQTTMessages.WithLabelValues(msg.kind, "accepted").Inc()
}

func (i *Ingestor) handleDose(ctx context.Context, msg message) error {
	var req api_models.DoseEventRequest
	if err := json.Unmarshal(msg.payload, &req); err != nil {
		return pdserrors.Validation("Missing required fields")
	}
	req.Serial = msg.serial
	req.Transport = transportMQTT

	event, err := i.recorder.RecordDoseEvent(ctx, req)
	if err != nil {
		return err
	}
	i.logger.Logger.Debug().Str("serial", msg.serial).Str("event_id", event.ID).Msg("Dose event ingested from MQTT")
	return nil
}

func (i *Ingestor) handleWeights(ctx context.Context, msg message) error {
	var req api_models.WeightBatchRequest
	if err := json.Unmarshal(msg.payload, &req); err != nil {
		return pdserrors.Validation("Missing or invalid fields")
	}
	req.Serial = msg.serial
	req.Transport = transportMQTT

	inserted, err := i.recorder.RecordWeightReadings(ctx, req)
	if err != nil {
		return err
	}
	i.logger.Logger.Debug().Str("serial", msg.serial).Int("inserted", inserted).Msg("Weight batch ingested from MQTT")
	return nil
}

// PublishCommand sends a queued command to <prefix>/<serial>/commands
func (i *Ingestor) PublishCommand(ctx context.Context, serial string, cmd pdsmodels.Command) error {
	if !i.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	topic := CommandTopic(i.cfg.TopicPrefix, serial)
	token := i.mqttClient.Publish(topic, 1, false, payload)

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish to %s timed out", topic)
	}
}

// publishError reports a rejected message back to the device
func (i *Ingestor) publishError(serial, errorType, message string) {
	if !i.IsConnected() {
		return
	}

	payloadJSON, err := json.Marshal(map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"serial":     serial,
		"timestamp":  time.Now().UTC(),
	})
	if err != nil {
		i.logger.Logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := ErrorTopic(i.cfg.TopicPrefix, serial)
	token := i.mqttClient.Publish(errorTopic, 1, false, payloadJSON)

	if token.WaitTimeout(publishTimeout) && token.Error() != nil {
		i.logger.Logger.Error().Err(token.Error()).Str("topic", errorTopic).Msg("Failed to publish error")
	}
}

// ParseTopic splits <prefix>/<serial>/<kind>
func ParseTopic(prefix, topic string) (serial, kind string, err error) {
	rest := strings.TrimPrefix(topic, prefix+"/")
	if rest == topic {
		return "", "", fmt.Errorf("topic %q is outside prefix %q", topic, prefix)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid topic %q, expected %s/<serial>/<kind>", topic, prefix)
	}
	if parts[1] != KindDose && parts[1] != KindWeights {
		return "", "", fmt.Errorf("unsupported kind %q", parts[1])
	}
	return parts[0], parts[1], nil
}

func CommandTopic(prefix, serial string) string {
	return fmt.Sprintf("%s/%s/commands", prefix, serial)
}

func ErrorTopic(prefix, serial string) string {
	return fmt.Sprintf("%s/errors/%s", prefix, serial)
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
