// Package config provides unified configuration for the routing pipeline:
// defaults, YAML file loading, environment variable override, file watching
// and hot reload of the tunable routing sections.
//
// Precedence is defaults -> YAML -> environment. Environment keys follow the
// struct's env tags with a SMALLTALK_ prefix, e.g. SMALLTALK_ROUTING_ADAPTATION_GATE.
package config
