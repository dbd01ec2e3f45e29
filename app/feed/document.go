package feed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EmptyDocument is served when nothing has been published yet.
func EmptyDocument() *Document {
	return &Document{Version: "0", Items: []Item{}}
}

func (d *Document) Marshal() ([]byte, error) {
	out := *d
	if out.Items == nil {
		out.Items = []Item{}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return data, nil
}

func UnmarshalDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if doc.Items == nil {
		doc.Items = []Item{}
	}
	return &doc, nil
}

// Fingerprint hashes the compact items array of a serialized document so
// that version and generatedAt never count as a change. Bodies without a
// readable items array are hashed as-is.
func Fingerprint(body []byte) string {
	var envelope struct {
		Items json.RawMessage `json:"items"`
	}

	payload := body
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Items) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, envelope.Items); err == nil {
			payload = compact.Bytes()
		}
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
