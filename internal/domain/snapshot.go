package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Flow selects one of the four dispatch strategies.
type Flow string

const (
	FlowMessagesBatch  Flow = "messages_batch"
	FlowMessagesSingle Flow = "messages_single"
	FlowEmailsBatch    Flow = "emails_batch"
	FlowEmailsSingle   Flow = "emails_single"
)

func (f Flow) IsValid() bool {
	switch f {
	case FlowMessagesBatch, FlowMessagesSingle, FlowEmailsBatch, FlowEmailsSingle:
		return true
	}
	return false
}

// Snapshot defaults applied when the action config omits a parameter.
const (
	DefaultMethod        = "post"
	DefaultBatchSize     = 50
	DefaultBatchInterval = 0
	DefaultRetryLimit    = 3
	DefaultTimeout       = 30
)

// ExtraKeys is the allow-list of flow-specific fields copied verbatim from
// the action config into the snapshot, in serialization order.
var ExtraKeys = []string{
	"ServiceType",
	"user",
	"idQuotaSettings",
	"idServiceSettings",
	"idBookBusinessSendGroup",
	"idForeignBookBusiness",
	"imageUrl",
	"imageName",
	"idTemplate",
	"text",
	"data",
	"variables",
	"name",
	"startDate",
	"endDate",
}

// ActionConfig is the JSON-shaped configuration of one campaign action.
type ActionConfig map[string]any

// ConfigSnapshot is the frozen dispatch configuration captured at enqueue
// time. Its canonical JSON is hashed to group queue items; fields are
// unexported so a snapshot cannot change after it is built.
type ConfigSnapshot struct {
	url           string
	headers       map[string]string
	method        string
	batchSize     int
	batchInterval int
	retryLimit    int
	timeout       int
	flow          Flow
	extras        map[string]any
}

// BuildSnapshot normalizes an action config into a snapshot.
func BuildSnapshot(cfg ActionConfig) ConfigSnapshot {
	s := ConfigSnapshot{
		url:           StringValue(cfg["url"], ""),
		headers:       SanitizeHeaders(cfg["headers"]),
		method:        StringValue(cfg["method"], DefaultMethod),
		batchSize:     IntValue(cfg["batch_size"], DefaultBatchSize),
		batchInterval: IntValue(cfg["batch_interval"], DefaultBatchInterval),
		retryLimit:    IntValue(cfg["retry_limit"], DefaultRetryLimit),
		timeout:       IntValue(cfg["timeout"], DefaultTimeout),
		flow:          Flow(StringValue(cfg["flow"], string(FlowMessagesBatch))),
		extras:        map[string]any{},
	}
	for _, k := range ExtraKeys {
		if v, ok := cfg[k]; ok {
			s.extras[k] = v
		}
	}
	return s
}

func (s ConfigSnapshot) URL() string        { return s.url }
func (s ConfigSnapshot) Method() string     { return s.method }
func (s ConfigSnapshot) BatchSize() int     { return s.batchSize }
func (s ConfigSnapshot) BatchInterval() int { return s.batchInterval }
func (s ConfigSnapshot) RetryLimit() int    { return s.retryLimit }
func (s ConfigSnapshot) Timeout() int       { return s.timeout }

// Flow returns the flow selector as captured. Use DispatchFlow for the
// strategy that will actually run.
func (s ConfigSnapshot) Flow() Flow { return s.flow }

// DispatchFlow maps unknown selectors to the default messages-batch flow.
func (s ConfigSnapshot) DispatchFlow() Flow {
	if s.flow.IsValid() {
		return s.flow
	}
	return FlowMessagesBatch
}

// Headers returns a copy of the sanitized header map.
func (s ConfigSnapshot) Headers() map[string]string {
	out := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		out[k] = v
	}
	return out
}

// Extra returns a flow-specific value and whether it was present.
func (s ConfigSnapshot) Extra(key string) (any, bool) {
	v, ok := s.extras[key]
	return v, ok
}

func (s ConfigSnapshot) ExtraString(key, def string) string {
	return StringValue(s.extras[key], def)
}

func (s ConfigSnapshot) ExtraInt(key string, def int) int {
	return IntValue(s.extras[key], def)
}

// MarshalJSON writes the canonical form: base parameters in fixed order
// followed by the present extras in ExtraKeys order.
func (s ConfigSnapshot) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	fields := []struct {
		key string
		val any
	}{
		{"url", s.url},
		{"headers", s.headers},
		{"method", s.method},
		{"batch_size", s.batchSize},
		{"batch_interval", s.batchInterval},
		{"retry_limit", s.retryLimit},
		{"timeout", s.timeout},
		{"flow", s.flow},
	}
	for _, k := range ExtraKeys {
		if v, ok := s.extras[k]; ok {
			fields = append(fields, struct {
				key string
				val any
			}{k, v})
		}
	}

	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.key)
		buf.Write(key)
		buf.WriteByte(':')
		val, err := encodeCompact(f.val)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot field %q: %w", f.key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a snapshot from its stored JSON. Numbers inside
// extras are kept as json.Number so re-encoding is byte-stable.
func (s *ConfigSnapshot) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if raw == nil {
		return ErrInvalidConfig
	}
	*s = BuildSnapshot(ActionConfig(raw))
	return nil
}

// Hash is the SHA-256 hex digest of the canonical JSON.
func (s ConfigSnapshot) Hash() (string, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// DecodeSnapshot parses a stored snapshot.
func DecodeSnapshot(data []byte) (ConfigSnapshot, error) {
	var s ConfigSnapshot
	if len(bytes.TrimSpace(data)) == 0 {
		return s, ErrInvalidConfig
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
