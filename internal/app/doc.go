// Package app composes the runnable application: it owns the configured
// logger, the operator registry and the lifecycle of one pipeline loaded
// from a definition file.
package app
