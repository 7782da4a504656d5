// Package config handles loading and validating Sidekick configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Sidekick works with zero configuration: when no config file exists the
// built-in defaults apply, and the backend base URL resolves through
// SIDEKICK_FORGE_URL, then FORGE_URL, then http://127.0.0.1:8765.
//
// Security Considerations:
//   - Sensitive values (broker passwords, tokens) should be set via
//     environment variables rather than the config file
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/sidekick.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Backend.URL)
package config
