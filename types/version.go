// Package types holds values shared by every ferry component.
package types

// Version is the canonical project version reported by the CLI.
const Version = "0.1.0"
