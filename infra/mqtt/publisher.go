package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mgenrique/ess-controller/core/model"
)

// Sender is the publishing side of PahoClient.
type Sender interface {
	Publish(topic string, payload []byte, retained bool) error
}

// Publisher writes schedules and setpoints to retained topics below a
// prefix:
//
//	<prefix>/schedule    full schedule as JSON
//	<prefix>/economics   economics summary as JSON
//	<prefix>/target_soc  scheduled SoC % of the current hour
//	<prefix>/setpoint    proposed grid import limit in W
type Publisher struct {
	sender          Sender
	prefix          string
	discoveryPrefix string
}

// NewPublisher returns a Publisher for the topics below prefix. A non-empty
// discoveryPrefix enables PublishDiscovery.
func NewPublisher(s Sender, prefix, discoveryPrefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Publisher{sender: s, prefix: prefix, discoveryPrefix: discoveryPrefix}
}

func (p *Publisher) ScheduleTopic() string  { return p.prefix + "/schedule" }
func (p *Publisher) EconomicsTopic() string { return p.prefix + "/economics" }
func (p *Publisher) TargetSoCTopic() string { return p.prefix + "/target_soc" }
func (p *Publisher) SetpointTopic() string  { return p.prefix + "/setpoint" }

// PublishSchedule publishes the schedule and its economics.
func (p *Publisher) PublishSchedule(ctx context.Context, s model.Schedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sch, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	eco, err := json.Marshal(s.Economics)
	if err != nil {
		return fmt.Errorf("encode economics: %w", err)
	}
	return errors.Join(
		p.sender.Publish(p.ScheduleTopic(), sch, true),
		p.sender.Publish(p.EconomicsTopic(), eco, true),
	)
}

// PublishSetpoint publishes the setpoint and the target SoC.
func (p *Publisher) PublishSetpoint(ctx context.Context, sp model.Setpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(
		p.sender.Publish(p.SetpointTopic(), []byte(strconv.FormatFloat(sp.Watts, 'f', 0, 64)), true),
		p.sender.Publish(p.TargetSoCTopic(), []byte(strconv.Itoa(sp.TargetSoCPercent)), true),
	)
}

// PublishDiscovery announces the sensors to Home Assistant. It is a no-op
// without a discovery prefix.
func (p *Publisher) PublishDiscovery() error {
	if p.discoveryPrefix == "" {
		return nil
	}
	var errs []error
	for _, s := range p.sensors() {
		payload, err := json.Marshal(p.discoveryMessage(s))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		errs = append(errs, p.sender.Publish(p.discoveryTopic(s.id), payload, true))
	}
	return errors.Join(errs...)
}
