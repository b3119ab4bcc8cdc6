// Package config loads ferry.yaml configuration files.
package config

import (
	"os"
	"regexp"
)

// refPattern matches ${VAR}, ${VAR:-default} and their $${...} escapes.
var refPattern = regexp.MustCompile(`\$(\$?)\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv expands references in input against the process environment.
// See Expand.
func ExpandEnv(input string) string {
	return Expand(input, os.LookupEnv)
}

// Expand replaces ${VAR} with the value lookup returns for VAR and
// ${VAR:-default} with that value or default when VAR is unset or empty.
// Unset variables without a default expand to the empty string; a missing
// secret then surfaces as a validation error such as an empty notify.url.
// $${VAR} is left as the literal ${VAR}.
func Expand(input string, lookup func(string) (string, bool)) string {
	return refPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := refPattern.FindStringSubmatch(match)
		if groups[1] == "$" {
			return match[1:]
		}
		if value, ok := lookup(groups[2]); ok && value != "" {
			return value
		}
		return groups[3]
	})
}
