/**
 * @description
 * This file contains custom middleware for the HTTP router. The transfer
 * service is an internal component fronted by the platform edge, so inbound
 * requests authenticate with a shared service key rather than end-user
 * credentials.
 *
 * @dependencies
 * - crypto/subtle, net/http, strings: Standard Go libraries.
 */

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const serviceKeyHeader = "X-Service-Key"

// ServiceKeyMiddleware creates a middleware that authenticates calling
// services via a shared key. Comparison is constant-time. An empty configured
// key rejects everything, so a missing deployment secret fails closed.
func ServiceKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	expected := strings.TrimSpace(expectedKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := strings.TrimSpace(r.Header.Get(serviceKeyHeader))
			if expected == "" || provided == "" {
				http.Error(w, "Service key required", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
				http.Error(w, "Invalid service key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
