// Package schema carries the static database description injected as context
// into SQL-stage prompts.
package schema

import (
	_ "embed"
	"strings"
)

//go:embed upi.md
var upi string

// UPI returns the UPI transaction schema description.
func UPI() string {
	return strings.TrimSpace(upi)
}
