package action

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

// maxBody bounds mutation payloads.
const maxBody = 1 << 20

// DecodeOneOrMany accepts either a JSON object or a JSON array of objects and
// reports which form was sent so the response can mirror it.
func DecodeOneOrMany[T any](r io.Reader) (items []T, many bool, err error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxBody))
	if err != nil {
		return nil, false, Validation("payload", "unreadable body")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, false, Validation("payload", "body is required")
	}
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, true, Validation("payload", "invalid JSON: %v", err)
		}
		return items, true, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, false, Validation("payload", "invalid JSON: %v", err)
	}
	return []T{one}, false, nil
}

// DecodeOne decodes a single JSON object.
func DecodeOne[T any](r io.Reader) (T, error) {
	var v T
	if err := json.NewDecoder(io.LimitReader(r, maxBody)).Decode(&v); err != nil {
		return v, Validation("payload", "invalid JSON: %v", err)
	}
	return v, nil
}

// PathID parses a positive numeric path value such as {id}.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, Validation(name, "must be a positive integer")
	}
	return id, nil
}

// QueryInt reads an optional integer query parameter. A missing value yields
// (0, false, nil); a malformed one yields a validation error.
func QueryInt(r *http.Request, name string) (int, bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, Validation(name, "must be an integer")
	}
	return n, true, nil
}
