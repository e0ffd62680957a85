package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PayloadEnvelope is stored in outbox_events.payload and published verbatim
// as the Pub/Sub message body. Consumers dedupe on EventID.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// decodeEnvelope parses a stored payload and rejects envelopes this build
// cannot read.
func decodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	switch {
	case env.Version < 1 || env.Version > currentVersion:
		return env, fmt.Errorf("unsupported envelope version %d", env.Version)
	case env.EventID == "":
		return env, errors.New("envelope missing eventId")
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return env, errors.New("envelope missing data")
	}
	return env, nil
}
