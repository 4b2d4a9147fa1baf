// Package gridcalc holds module-level metadata.
package gridcalc

// Version is the CLI version string printed by the version command.
const Version = "v0.1.0"
