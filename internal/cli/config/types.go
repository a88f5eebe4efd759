// Package config loads depstamp's layered configuration: defaults, an
// optional depstamp.yaml file, DEPSTAMP_ environment variables, and CLI
// flags, in ascending precedence.
package config

// Defaults applied before any other configuration layer.
const (
	DefaultInventoryPath = ".depstamp/inventory.db"
	DefaultOutput        = "table"
)

// Config is the resolved configuration shared by all commands.
type Config struct {
	// InventoryPath is the SQLite database the scan command records into.
	InventoryPath string `koanf:"inventory_path"`
	// Output selects the list/scan rendering format: table, json or yaml.
	Output string `koanf:"output"`
	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`
}
