// Package config handles configuration loading for mycastle-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${MYCASTLE_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	completion:
//	  initial_delay: "1s"
//	  max_delay: "30s"
//	  cache_ttl: "1h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"  # envelope endpoint and health probes
//	  stdio: false               # line transport instead of HTTP
//
// Database:
//
//	database:
//	  path: "/var/lib/mycastle/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${MYCASTLE_JWT_SECRET}"  # required, 16 bytes minimum
//	  default_credential: ""                # optional process-wide fallback
//
// Completion upstream:
//
//	completion:
//	  base_url: "https://api.example.com/v1"
//	  api_key: "${MYCASTLE_COMPLETION_KEY}"
//	  model: "tutor-large"
//	  max_attempts: 3
//	  initial_delay: "1s"
//	  max_delay: "30s"
//	  cache_ttl: "1h"
//	  cache_size: 256
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
