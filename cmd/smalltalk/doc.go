/*
Package main provides the smalltalk service entry point.

# Overview

cmd/smalltalk is the executable shell around the routing pipeline. It is an
operational surface, not a product one: serve exposes health, readiness,
Prometheus metrics and a websocket for operator consoles; migrate manages
the behavior store schema; version and health support scripting.

# Core types

  - Server     assembles the provider, behavior store, orchestrator and
    HTTP endpoints, and owns graceful shutdown
  - Middleware is the func(http.Handler) http.Handler chain element

# Capabilities

  - Subcommands: serve, migrate, version, health
  - Middleware chain: Recovery, RequestID, SecurityHeaders, RequestLogger,
    OTelTracing, MetricsMiddleware, RateLimiter (per IP), JWTAuth (HS256)
  - Config hot reload: routing weights and log level apply live
  - Metrics server: /metrics (Prometheus) on its own port
  - Graceful shutdown: signal, then HTTP, metrics, bridges, orchestrator
  - Build injection: Version, BuildTime, GitCommit via ldflags
*/
package main
