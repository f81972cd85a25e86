// Package config handles loading and validating townylog configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//   - Watching the file for runtime changes (Watcher)
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - The JWT secret must be set whenever the admin API is enabled
//
// Runtime Changes:
//   - logging.debug is applied live by the host harness through Watcher
//   - logging.append_to_log is read once when file sinks are built; a
//     change takes effect on the next start
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Host.LogDir())
package config
