// Package factrun provides the version information for factrun.
package factrun

// Version is the current version of factrun.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
