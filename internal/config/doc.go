// Package config handles configuration loading for dict-sub.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	providers:
//	  - name: openai
//	    model: gpt-4o-mini
//	    api_key: "${OPENAI_API_KEY}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	pending:
//	  ttl: "30s"
//	cache:
//	  ttl: "168h"
//	  capacity: 500
//
// # Usage
//
//	cfg, err := config.Load("/etc/dictsub/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
