// Package domain contains the core value types of the holoship host:
// session configuration and phase, disconnect reasons, camera and frame
// descriptors, user commands and the sentinel errors returned by the
// public API.
//
// The package has no dependencies on infrastructure. Everything here is a
// plain value that can be copied between goroutines.
package domain
