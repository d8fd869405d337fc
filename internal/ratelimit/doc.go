// Package ratelimit provides per-IP rate limiting with background eviction
// of stale entries.
//
// This is a single-instance, in-memory rate limiter intended for basic abuse
// prevention on a single pod. The endpoints here are cheap except /stress,
// which burns a full CPU core for its window: without a limiter one curl
// loop could starve the pod and trip its own liveness probe. It does not
// protect against distributed attacks; for those, use an upstream WAF or
// ingress-level rate limiting.
package ratelimit
