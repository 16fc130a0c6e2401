package mqtt

import "fmt"

// DiscoveryConfig is a Home Assistant MQTT discovery payload.
type DiscoveryConfig struct {
	Device            DiscoveryDevice `json:"device"`
	StateTopic        string          `json:"state_topic"`
	ValueTemplate     string          `json:"value_template,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	AvTopic           string          `json:"availability_topic,omitempty"`
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	Platform          string          `json:"platform"`
	Icon              string          `json:"icon,omitempty"`
}

// DiscoveryDevice groups the entities in Home Assistant.
type DiscoveryDevice struct {
	ID           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
}

type sensorDef struct {
	id, name, topic, template, unit, deviceClass, stateClass, icon string
}

func (p *Publisher) sensors() []sensorDef {
	return []sensorDef{
		{id: "target_soc", name: "Target SoC", topic: p.TargetSoCTopic(), unit: "%", deviceClass: "battery", stateClass: "measurement"},
		{id: "grid_setpoint", name: "Grid setpoint", topic: p.SetpointTopic(), unit: "W", deviceClass: "power", stateClass: "measurement"},
		{id: "total_cost", name: "Schedule total cost", topic: p.EconomicsTopic(), template: "{{ value_json.total_cost }}", icon: "mdi:cash"},
		{id: "final_soc", name: "Schedule final SoC", topic: p.EconomicsTopic(), template: "{{ value_json.final_soc_wh }}", unit: "Wh", deviceClass: "energy_storage"},
		{id: "schedule", name: "Schedule", topic: p.ScheduleTopic(), template: "{{ value_json.computed_at }}", deviceClass: "timestamp", icon: "mdi:calendar-clock"},
	}
}

func (p *Publisher) discoveryTopic(id string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", p.discoveryPrefix, p.prefix, id)
}

func (p *Publisher) discoveryMessage(s sensorDef) DiscoveryConfig {
	return DiscoveryConfig{
		Device:            DiscoveryDevice{ID: []string{p.prefix}, Name: "ESS Controller", Model: "LP scheduler"},
		StateTopic:        s.topic,
		ValueTemplate:     s.template,
		StateClass:        s.stateClass,
		DeviceClass:       s.deviceClass,
		UnitOfMeasurement: s.unit,
		AvTopic:           p.prefix + "/status",
		Name:              s.name,
		UniqueID:          p.prefix + "_" + s.id,
		Platform:          "mqtt",
		Icon:              s.icon,
	}
}
