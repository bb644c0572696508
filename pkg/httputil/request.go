package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// DecodeJSON decodes a JSON request body into dst, limiting the body size
func DecodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// PathInt64 extracts an int64 path variable from a gorilla/mux route
func PathInt64(r *http.Request, name string) (int64, error) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		return 0, fmt.Errorf("missing path parameter %q", name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid path parameter %q: %w", name, err)
	}
	return id, nil
}

// PathString extracts a string path variable from a gorilla/mux route
func PathString(r *http.Request, name string) (string, error) {
	raw, ok := mux.Vars(r)[name]
	if !ok || raw == "" {
		return "", fmt.Errorf("missing path parameter %q", name)
	}
	return raw, nil
}

// QueryInt returns an integer query parameter or a default
func QueryInt(r *http.Request, name string, defaultValue int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return defaultValue
}
