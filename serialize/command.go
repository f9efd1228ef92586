package serialize

import "encoding/json"

// Command is a decoded inbound subscriber control frame. Unknown
// commands decode successfully with an empty Name and are silently
// ignored by the caller (spec.md §6: "unknown commands are silently
// ignored").
type Command struct {
	Name     string `json:"command"`
	ThreadID uint64 `json:"threadId"`
}

// ParseCommand decodes an inbound frame. Decoding is the one place
// encoding/json is used in this package: the input is untrusted,
// infrequent, and small, so reflection-based decoding carries none of
// the broadcaster hot path's per-frame allocation concern that rules
// it out on the encode side.
func ParseCommand(raw []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(raw, &c); err != nil {
		return Command{}, err
	}
	return c, nil
}
