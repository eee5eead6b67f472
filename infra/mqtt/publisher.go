package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kilianp07/cellmon/core/model"
	"github.com/kilianp07/cellmon/infra/logger"
)

// ResultPublisher pushes estimation results to battery/<id>/state. Publishing
// is fire-and-forget: a failed delivery is logged and reported to the caller
// but must never stall the next estimation cycle.
type ResultPublisher struct {
	cli    pahoClient
	prefix string
	qos    byte
	log    logger.Logger
}

// statePayload is the wire format of a published result. An unbounded RUL is
// encoded as a null rul_hours.
type statePayload struct {
	BatteryID    string   `json:"battery_id"`
	SOC          float64  `json:"soc"`
	SOH          float64  `json:"soh"`
	RULHours     *float64 `json:"rul_hours"`
	CapacityAh   float64  `json:"capacity_ah"`
	VoltageV     float64  `json:"voltage_v"`
	CurrentA     float64  `json:"current_a"`
	TemperatureC float64  `json:"temperature_c"`
	TS           int64    `json:"ts"`
}

// NewResultPublisher connects a dedicated client for state publications.
func NewResultPublisher(cfg Config) (*ResultPublisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	id := cfg.ClientID
	if id != "" {
		id += "-publisher"
	} else {
		id = "cellmon-publisher-" + uuid.NewString()
	}
	opts.SetClientID(id)

	qos := byte(0)
	if q, ok := cfg.QoS["state"]; ok {
		qos = q
	}
	p := &ResultPublisher{
		prefix: strings.TrimSuffix(cfg.StatePrefix, "/"),
		qos:    qos,
		log:    logger.New("mqtt-publisher"),
	}
	cli := newMQTTClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = cli
	return p, nil
}

// Publish sends one estimation result. The returned error is informational;
// callers record it and move on.
func (p *ResultPublisher) Publish(res model.EstimationResult) error {
	msg := statePayload{
		BatteryID:    res.BatteryID,
		SOC:          res.SOC,
		SOH:          res.SOH,
		CapacityAh:   res.CapacityAh,
		VoltageV:     res.Reading.VoltageVolts,
		CurrentA:     res.Reading.CurrentAmps,
		TemperatureC: res.Reading.TemperatureC,
		TS:           res.Time.Unix(),
	}
	if !model.RULIsUnbounded(res.RULHours) {
		rul := res.RULHours
		msg.RULHours = &rul
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("%s/%s/state", p.prefix, res.BatteryID)
	token := p.cli.Publish(topic, p.qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		p.log.Errorf("publish state for %s: %v", res.BatteryID, err)
		return err
	}
	p.log.Debugw("published state", map[string]any{"battery_id": res.BatteryID, "topic": topic})
	return nil
}

// Close disconnects the publisher client.
func (p *ResultPublisher) Close() error {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
	return nil
}
