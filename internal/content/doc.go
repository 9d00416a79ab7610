// Package content holds the sample holographic content rendered by the
// host.
package content
