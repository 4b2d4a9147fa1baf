package types

import "errors"

// Grid defaults. The row and column caps match conventional spreadsheet
// limits; the engine rejects references beyond them with InvalidReference.
const (
	DefaultMaxRows   = 1048576
	DefaultMaxCols   = 16384
	DefaultSheetName = "Sheet1"
)

// Config validation errors.
var (
	ErrMaxRowsInvalid = errors.New("max rows must be positive")
	ErrMaxColsInvalid = errors.New("max columns must be positive")
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
)

// Config holds the engine's grid limits and the name of the sheet created
// on startup.
type Config struct {
	MaxRows      int    `json:"max_rows" yaml:"max_rows"`
	MaxCols      int    `json:"max_cols" yaml:"max_cols"`
	DefaultSheet string `json:"default_sheet" yaml:"default_sheet"`
}

// WithDefaults returns a copy of the config with zero fields replaced by
// the package defaults.
func (c Config) WithDefaults() Config {
	if c.MaxRows == 0 {
		c.MaxRows = DefaultMaxRows
	}
	if c.MaxCols == 0 {
		c.MaxCols = DefaultMaxCols
	}
	if c.DefaultSheet == "" {
		c.DefaultSheet = DefaultSheetName
	}
	return c
}

// Validate checks that the config is well-formed, returning a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.MaxRows <= 0 {
		return ErrMaxRowsInvalid
	}
	if c.MaxCols <= 0 {
		return ErrMaxColsInvalid
	}
	return nil
}

// Supported store backend names.
const (
	BackendSQLite = "sqlite"
)

// knownBackends lists the backends that StoreConfig.Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// StoreConfig holds backend selection and parameters for Store.Attach.
type StoreConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Validate checks that the StoreConfig is well-formed. It returns a
// sentinel error from this package on failure.
func (c StoreConfig) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return nil
}
