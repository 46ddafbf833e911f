package realtime

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"

	"github.com/klauspost/compress/gzip"
)

// Envelope is the uniform reply shape carried by every hub call. Success is a
// pointer so its absence, which makes the reply uninterpretable, can be told
// apart from an explicit false.
type Envelope struct {
	Success  *bool           `json:"Success"`
	Msg      string          `json:"Msg"`
	Status   int             `json:"Status"`
	Response json.RawMessage `json:"Response"`
}

// decodeReply interprets a raw hub reply as an envelope and extracts a typed
// result. The type parameter is the caller's expected shape and directs null
// handling: an absent reply or payload becomes an empty map or slice for
// collection-shaped expectations, and a zero value otherwise. An absent reply
// with a non-collection expectation is a protocol error.
func decodeReply[T any](raw json.RawMessage) (T, error) {
	var zero T

	if isAbsent(raw) {
		if empty, ok := emptyCollection[T](); ok {
			return empty, nil
		}
		return zero, &ProtocolError{Reason: "empty server reply"}
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, &ProtocolError{Reason: "malformed envelope", Err: err}
	}
	if env.Success == nil {
		return zero, &ProtocolError{Reason: "envelope missing success flag"}
	}
	if !*env.Success {
		return zero, &ServerError{Msg: env.Msg, Status: env.Status}
	}

	return decodePayload[T](env.Response)
}

// decodePayload extracts the final value from the envelope's response field.
func decodePayload[T any](payload json.RawMessage) (T, error) {
	var zero T

	if isAbsent(payload) {
		if empty, ok := emptyCollection[T](); ok {
			return empty, nil
		}
		return zero, nil
	}

	// A byte-sequence response is gzip-compressed UTF-8 JSON text, not a
	// binary record format. Decompress, then parse the text.
	if compressed, ok := compressedBytes(payload); ok {
		text, err := gunzip(compressed)
		if err != nil {
			return zero, &ProtocolError{Reason: "undecodable compressed payload", Err: err}
		}
		var out T
		if err := json.Unmarshal(text, &out); err != nil {
			return zero, &ProtocolError{Reason: "decompressed payload shape mismatch", Err: err}
		}
		return out, nil
	}

	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return zero, &ProtocolError{Reason: "payload shape mismatch", Err: err}
	}
	return out, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// emptyCollection returns an initialized empty value when T is map- or
// slice-shaped, so collection-expecting callers receive an empty collection
// rather than a typed nil.
func emptyCollection[T any]() (T, bool) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return zero, false
	}
	switch t.Kind() {
	case reflect.Map:
		return reflect.MakeMap(t).Interface().(T), true
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0).Interface().(T), true
	default:
		return zero, false
	}
}

// compressedBytes reports whether the payload is a JSON string holding
// base64-encoded bytes that start with the gzip magic number.
func compressedBytes(payload json.RawMessage) ([]byte, bool) {
	if len(payload) == 0 || payload[0] != '"' {
		return nil, false
	}
	var data []byte
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, false
	}
	if len(data) < 2 || data[0] != 0x1f || data[1] != 0x8b {
		return nil, false
	}
	return data, true
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
