// Package render presents conversations: colored terminal output for
// interactive use and HTML export for sharing.
package render
