// Package config provides user configuration management for benyctl.
//
// This package manages a YAML-based configuration file that stores the
// chargers the user has registered (address, PIN, model, phase count, DLB
// flag, poll interval) and application preferences. The configuration
// follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/beny/config.yaml or $HOME/.config/beny/config.yaml
//   - macOS: $HOME/.config/beny/config.yaml
//   - Windows: %LOCALAPPDATA%\beny\config.yaml
//
// # Security
//
// Charger PINs are sent in every request and are therefore stored in the
// file. It is written with 0600 permissions inside a 0700 directory.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.UpdateChargerLastSeen("1234567890", "192.168.1.100", 0)
//	registry.SetChargerName("1234567890", "Garage")
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
//	serial, charger, err := registry.FindCharger("garage")
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
