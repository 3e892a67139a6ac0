package models

import "time"

// MessageEnvelope is the JSON document carried on every Kafka topic.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID  string        `json:"trace_id,omitempty"`
	TenantID string        `json:"tenant_id,omitempty"`
	Decision *DecisionInfo `json:"decision,omitempty"`
	DLQ      *DLQInfo      `json:"dlq,omitempty"`
}

// DecisionInfo is attached to delivery envelopes published after evaluation.
type DecisionInfo struct {
	TemplateID string    `json:"template_id"`
	Verdict    string    `json:"verdict"`
	Reason     string    `json:"reason,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}

// DLQInfo records why a message ended up on the dead letter topic.
type DLQInfo struct {
	Reason      string    `json:"reason"`
	SourceTopic string    `json:"source_topic"`
	Service     string    `json:"service,omitempty"`
	FailedAt    time.Time `json:"failed_at"`
}

func (msg *MessageEnvelope) GetPayloadField(name string) (interface{}, bool) {
	if msg.Payload == nil {
		return nil, false
	}

	value, ok := msg.Payload[name]
	return value, ok
}

func (msg *MessageEnvelope) GetPayloadString(name string) string {
	v, ok := msg.GetPayloadField(name)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (msg *MessageEnvelope) SetPayloadField(name string, value interface{}) {
	if msg.Payload == nil {
		msg.Payload = make(map[string]interface{})
	}

	msg.Payload[name] = value
}
