// Package common provides shared utilities across the application.
//
// Placeholder expansion implements the {name} syntax used by stage argument
// templates and template output names. A placeholder either names a scalar
// value, replaced in place, or a list value, which must stand alone as one
// argument and splices its elements into the argument vector.
//
// Example:
//
//	Args:    ["{flags}", "-o", "{output}", "{input}"]
//	Scalars: {"input": "src/main.c", "output": "target/build/main.s"}
//	Lists:   {"flags": ["-Oirs", "--add-source"]}
//	Result:  ["-Oirs", "--add-source", "-o", "target/build/main.s", "src/main.c"]
//
// Expansion is strict: an unresolved reference is an error, never silently
// left in place, so a typo in a stage template fails at graph build time
// rather than inside the external tool.
package common

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderPattern matches {name} references in strings
// Allows alphanumeric characters, hyphens, and underscores
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// FindPlaceholders returns the placeholder names referenced in the input,
// in order of first appearance.
func FindPlaceholders(input string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(input, -1)
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		if len(match) > 1 && !seen[match[1]] {
			seen[match[1]] = true
			names = append(names, match[1])
		}
	}
	return names
}

// ExpandString replaces every {name} reference in the input with its scalar
// value. An unresolved reference is an error.
func ExpandString(input string, scalars map[string]string) (string, error) {
	if input == "" {
		return input, nil
	}

	var unresolved []string
	result := placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[1 : len(match)-1]
		if value, exists := scalars[name]; exists {
			return value
		}
		unresolved = append(unresolved, name)
		return match
	})

	if len(unresolved) > 0 {
		return "", fmt.Errorf("unresolved placeholder(s) %s in %q", strings.Join(unresolved, ", "), input)
	}
	return result, nil
}

// ExpandArgs substitutes placeholders into an argument template. An argument
// that is exactly one list-valued placeholder splices the list's elements
// into the vector in place; list placeholders embedded inside a longer
// argument are rejected, since there is no sane joining rule for them.
func ExpandArgs(args []string, scalars map[string]string, lists map[string][]string) ([]string, error) {
	result := make([]string, 0, len(args))

	for _, arg := range args {
		// Whole-argument list placeholder splices.
		if name, ok := soleReference(arg); ok {
			if values, isList := lists[name]; isList {
				result = append(result, values...)
				continue
			}
		}

		// A list placeholder inside a longer argument has no joining rule.
		for _, name := range FindPlaceholders(arg) {
			if _, isList := lists[name]; isList {
				return nil, fmt.Errorf("list placeholder {%s} must be a standalone argument, got %q", name, arg)
			}
		}

		expanded, err := ExpandString(arg, scalars)
		if err != nil {
			return nil, err
		}
		result = append(result, expanded)
	}

	return result, nil
}

// soleReference reports whether the argument consists of exactly one
// placeholder reference, returning its name.
func soleReference(arg string) (string, bool) {
	match := placeholderPattern.FindStringSubmatch(arg)
	if match == nil || match[0] != arg {
		return "", false
	}
	return match[1], true
}
