// Package ui provides semantic text formatting for CLI output.
//
// This package defines formatters for different types of content (code,
// paths, errors, etc.) that render appropriately based on terminal
// capabilities. When colors are available, content is colorized. When
// NO_COLOR is set or the terminal doesn't support colors, text-based
// decorations (backticks, quotes) are used instead.
//
// # Semantic Formatters
//
// Use the appropriate formatter for the content type:
//
//	ui.Code.Sprint("keysync key show")        // Commands and code
//	ui.Path.Sprint("~/.config/keysync")       // File paths
//	ui.Highlight.Sprint("alice")              // Accounts, record IDs
//	ui.Muted.Sprint("optional")               // De-emphasized text
//	ui.KeyMaterial.Sprint(fingerprint)         // Public keys and fingerprints
//	ui.Secret.Sprint(privateHex)               // Revealed private keys
//
// Lines of output start with a status mark: CheckMark, CrossMark,
// WarnMark, HintMark or InfoMark.
//
// # Color Behavior
//
// Colors are disabled when:
//   - NO_COLOR environment variable is set (any value)
//   - Terminal doesn't support colors (TERM=dumb, not a TTY)
//
// When colors are disabled, formatters apply text decorations:
//   - Code: `backticks`
//   - Highlight: 'single quotes'
//   - Muted: (parentheses)
//   - Secret: <angle brackets>
//   - Others: no decoration (self-evident from context)
package ui
