// Package config handles loading and validating joymirror configuration.
//
// This package manages:
//   - Loading configuration from YAML files (optional: defaults always apply)
//   - Overriding with environment variables
//   - Validation of field ranges
//   - Default value handling
//
// The daemon takes no command-line flags; its only tunables are the registry
// capacity, the synthesised-device identity and the demonstration rumble
// parameters, all of which default to the historical values.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Registry.MaxDevices)
package config
