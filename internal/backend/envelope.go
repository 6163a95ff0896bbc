package backend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Envelope is the backend's standard response wrapper: {apiSuccess, message, data}.
type Envelope struct {
	// Flagged reports whether the body carried an apiSuccess field at all.
	Flagged bool
	Success bool
	Message string
	Data    json.RawMessage
	// Body is the full response body, for endpoints that answer without an envelope.
	Body    json.RawMessage
	Cookies []*http.Cookie
}

// Decode unmarshals Data into v. A missing or null data field leaves v untouched.
func (e *Envelope) Decode(v any) error {
	if e == nil || isNull(e.Data) {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// DecodeBody unmarshals the whole response body into v.
func (e *Envelope) DecodeBody(v any) error {
	if e == nil || isNull(e.Body) {
		return nil
	}
	return json.Unmarshal(e.Body, v)
}

type rawEnvelope struct {
	APISuccess json.RawMessage `json:"apiSuccess"`
	Message    json.RawMessage `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func parseEnvelope(body []byte) (*Envelope, error) {
	env := &Envelope{Body: json.RawMessage(body)}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return env, nil
	}
	if trimmed[0] != '{' {
		// Arrays and scalars are valid JSON bodies without an envelope.
		if !json.Valid(trimmed) {
			return nil, errInvalidJSON
		}
		return env, nil
	}
	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, err
	}
	env.Flagged = len(raw.APISuccess) > 0
	env.Success = flagTrue(raw.APISuccess)
	env.Message = looseString(raw.Message)
	env.Data = raw.Data
	return env, nil
}

// flagTrue reports whether apiSuccess is the JSON number 1. Strings and
// booleans are failures like any other value.
func flagTrue(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	if s == "" || !strings.ContainsAny(s[:1], "-0123456789") {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f == 1
}

func looseString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func isNull(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	return len(s) == 0 || bytes.Equal(s, []byte("null"))
}

// messageFrom extracts a "message" or "error" string from an error body.
func messageFrom(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if msg := looseString(payload.Message); msg != "" {
		return msg
	}
	return looseString(payload.Error)
}
