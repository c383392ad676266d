//go:build !debug

package debug

// Debug controls log verbosity and stack trace detail. It is set at build
// time with the "debug" build tag.
const Debug = false
