package emu

import (
	"bytes"
	"encoding/gob"
)

func encodeGob(v any) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decodeGob(data []byte, v any) bool {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v) == nil
}
