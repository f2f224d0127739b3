// Package middleware provides the HTTP middleware chain of the server:
// request IDs, access logging with log-injection sanitizing, Prometheus
// request metrics and gzip compression of text responses.
package middleware
