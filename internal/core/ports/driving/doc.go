// Package driving holds the ports that the CLI, the TUI and the MCP server
// call into. Services in internal/core/services implement them; adapters
// never reach past these interfaces into storage or the model.
package driving
