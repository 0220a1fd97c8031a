// Package file stores settings as TOML in the user's config directory
// (~/.mima/config.toml). Sections on disk map to dotted keys in memory.
package file
