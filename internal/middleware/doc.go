// Package middleware provides the HTTP middleware around the job API.
//
// It includes:
//   - Request logging with control characters stripped from client input
//   - Prometheus request metrics labelled by route template
//   - gzip compression of JSON responses
package middleware
