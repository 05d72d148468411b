package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
)

func generateRandomString(length int) string {
	// base64 encoding increases size by ~4/3, so this is always enough bytes
	b := make([]byte, length)
	_, _ = rand.Read(b)
	encoded := base64.URLEncoding.EncodeToString(b)
	if len(encoded) > length {
		return encoded[:length]
	}
	return encoded
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
