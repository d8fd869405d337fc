// Package httpmw provides HTTP middleware for the public-facing server.
//
// Middleware is composed in a specific order in httpserver.NewHandler:
// recovery, security headers, request ID, client IP extraction, rate
// limiting, OTEL tracing, metrics, structured logging, and chi router.
//
// Each middleware is an independent function that can be tested, reordered,
// or removed individually. Probe endpoints are excluded from access logs
// because the kubelet hits them every few seconds.
package httpmw
