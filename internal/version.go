// Package internal holds values shared by the treesync executables.
package internal

// Version is the release of the treesync executables.
const Version = "0.1.0"
