// Package response renders JSON bodies and error envelopes.
package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with status 200
func OK(w http.ResponseWriter, v any) {
	JSON(w, http.StatusOK, v)
}

// Created writes v with status 201
func Created(w http.ResponseWriter, v any) {
	JSON(w, http.StatusCreated, v)
}

// NoContent writes an empty 204
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Redirect is the body returned by auth endpoints that move the SPA elsewhere
type Redirect struct {
	Success  bool   `json:"success"`
	Redirect string `json:"redirect"`
}

// Success writes {"success":true,"redirect":to}
func Success(w http.ResponseWriter, to string) {
	OK(w, Redirect{Success: true, Redirect: to})
}
