package scene

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxInflatedPayload caps decompressed command payloads. Scenes are small;
// anything near this limit is malformed or hostile.
const maxInflatedPayload = 16 << 20

// DecodeCommandPayload decodes a command payload from the wire:
// - raw JSON (starts with '{' or '[')
// - zlib-compressed JSON (bandwidth-constrained publishers)
func DecodeCommandPayload(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if data[0] == '{' || data[0] == '[' {
		return data, nil
	}

	jsonBytes, err := inflateZlib(data)
	if err != nil {
		return nil, fmt.Errorf("unknown payload format: not JSON or zlib-compressed")
	}
	if len(jsonBytes) == 0 {
		return nil, fmt.Errorf("decoded payload is empty")
	}
	return jsonBytes, nil
}

// ParseSceneJSON unmarshals a full scene document.
func ParseSceneJSON(data []byte) (*SceneState, error) {
	var s SceneState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scene JSON: %w", err)
	}
	if s.ViewMode == "" {
		s.ViewMode = ViewModeFlat
	}
	if !s.ViewMode.Valid() {
		return nil, &ValidationError{Field: "viewMode", Reason: "must be flat or perspective"}
	}
	return &s, nil
}

// ParseSceneFile reads and decodes a scene document from disk, accepting the
// same formats as DecodeCommandPayload.
func ParseSceneFile(path string) (*SceneState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	jsonBytes, err := DecodeCommandPayload(data)
	if err != nil {
		return nil, err
	}
	return ParseSceneJSON(jsonBytes)
}

// inflateZlib decompresses zlib-compressed data up to maxInflatedPayload.
func inflateZlib(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zlib reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	decompressed, err := io.ReadAll(io.LimitReader(reader, maxInflatedPayload))
	if err != nil {
		return nil, fmt.Errorf("decompressing zlib data: %w", err)
	}
	return decompressed, nil
}
