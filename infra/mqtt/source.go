package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/cellmon/core/model"
	"github.com/kilianp07/cellmon/core/sampler"
	"github.com/kilianp07/cellmon/infra/logger"
)

// pahoClient is the subset of the Paho client the source needs; it exists so
// tests can substitute a fake.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// ReadingSource delivers battery readings pushed over MQTT. Each sensor node
// publishes JSON readings on battery/<id>/reading; the source decodes them
// and forwards them on a channel consumed by the monitor loop.
type ReadingSource struct {
	cli     pahoClient
	topic   string
	log     logger.Logger
	samples chan sampler.Sample

	mu     sync.Mutex
	closed bool
}

// readingMessage is the wire format published by sensor nodes.
type readingMessage struct {
	BatteryID   string  `json:"battery_id"`
	Voltage     float64 `json:"voltage"`
	Current     float64 `json:"current"`
	Temperature float64 `json:"temperature"`
	TS          *int64  `json:"ts"` // unix seconds; defaults to arrival time
}

// NewReadingSource connects to the broker and subscribes to the reading
// topic.
func NewReadingSource(cfg Config) (*ReadingSource, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		opts.SetClientID("cellmon-source-" + uuid.NewString())
	}

	log := logger.New("mqtt-source")
	s := &ReadingSource{
		topic:   cfg.ReadingTopic,
		log:     log,
		samples: make(chan sampler.Sample, 100),
	}
	qos := byte(0)
	if q, ok := cfg.QoS["reading"]; ok {
		qos = q
	}
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(s.topic, qos, s.onReading); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	s.cli = cli
	return s, nil
}

func (s *ReadingSource) onReading(_ paho.Client, msg paho.Message) {
	smp, err := decodeReading(msg.Payload(), msg.Topic(), time.Now())
	if err != nil {
		s.log.Errorf("decode reading: %v", err)
		return
	}
	// The paho router may still deliver messages while Close runs; the flag
	// keeps a late handler from sending on the closed channel.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.samples <- smp:
	default:
		s.log.Warnf("sample queue full, dropping reading for %s", smp.BatteryID)
	}
}

// decodeReading turns a wire payload into a tagged sample. The battery id is
// taken from the payload when present, otherwise from the topic.
func decodeReading(payload []byte, topic string, arrived time.Time) (sampler.Sample, error) {
	var msg readingMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return sampler.Sample{}, err
	}
	id := msg.BatteryID
	if id == "" {
		id = batteryIDFromTopic(topic)
	}
	if id == "" {
		return sampler.Sample{}, fmt.Errorf("reading without battery id on topic %q", topic)
	}
	ts := arrived
	if msg.TS != nil {
		ts = time.Unix(*msg.TS, 0)
	}
	return sampler.Sample{
		BatteryID: id,
		Reading: model.Reading{
			VoltageVolts: msg.Voltage,
			CurrentAmps:  msg.Current,
			TemperatureC: msg.Temperature,
			Timestamp:    ts,
		},
	}, nil
}

// batteryIDFromTopic extracts the id segment of battery/<id>/reading.
func batteryIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

// Samples returns the channel of decoded readings.
func (s *ReadingSource) Samples() <-chan sampler.Sample { return s.samples }

// Close disconnects from the broker and closes the sample channel. Safe to
// call more than once.
func (s *ReadingSource) Close() error {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.samples)
	return nil
}
