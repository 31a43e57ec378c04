// Package dedupe provides a time-based cache that suppresses repeated work
// for the same key within a configurable window.
package dedupe
