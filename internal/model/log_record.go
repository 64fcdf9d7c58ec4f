package model

import (
	"encoding/json"
)

// LogRecord is the EVM-style encoding of one engine event, as written to the journal.
type LogRecord struct {
	Sequence   uint64   `json:"sequence"`
	OpHash     string   `json:"op_hash"`
	LogIndex   uint64   `json:"log_index"`
	Address    string   `json:"address"`
	Topics     []string `json:"topics"`
	Data       string   `json:"data"`
	Timestamp  uint64   `json:"timestamp"`
	IngestedAt string   `json:"ingested_at"`
}

// MarshalJSON ensures LogRecord is encoded with stable field names.
func (lr LogRecord) MarshalJSON() ([]byte, error) {
	type Alias LogRecord
	return json.Marshal(Alias(lr))
}

// UnmarshalJSON decodes a LogRecord from JSON.
func (lr *LogRecord) UnmarshalJSON(data []byte) error {
	type Alias LogRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*lr = LogRecord(a)
	return nil
}

// Topic0 returns the event signature topic, or "" if the record has none.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return lr.Topics[0]
}
