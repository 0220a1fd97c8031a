// Package memory provides in-memory implementations of driven ports.
// They back tests and the --ephemeral mode of the CLI; nothing survives the process.
package memory
