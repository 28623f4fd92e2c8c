package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envExpander expands environment variables in runfile text before parsing.
type envExpander struct {
	// strict fails if a referenced variable is not set.
	strict bool
	// missing tracks missing environment variables.
	missing []string
}

var bracketPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*|:\?[^}]*)?\}`)

// Expand expands environment variables in the input string.
// Supported patterns:
//   - ${VAR} - expands to the value of VAR
//   - ${VAR:-default} - expands to VAR or "default" if not set
//   - ${VAR:?error message} - fails if VAR is not set
func (e *envExpander) Expand(input string) (string, error) {
	e.missing = nil

	result := bracketPattern.ReplaceAllStringFunc(input, func(match string) string {
		inner := match[2 : len(match)-1]

		parts := strings.SplitN(inner, ":", 2)
		varName := parts[0]
		var modifier string
		if len(parts) > 1 {
			modifier = parts[1]
		}

		value, exists := os.LookupEnv(varName)

		if modifier != "" {
			if strings.HasPrefix(modifier, "-") {
				if !exists || value == "" {
					return modifier[1:]
				}
			} else if strings.HasPrefix(modifier, "?") {
				if !exists || value == "" {
					e.missing = append(e.missing, fmt.Sprintf("%s: %s", varName, modifier[1:]))
					return match
				}
			}
		} else if !exists {
			if e.strict {
				e.missing = append(e.missing, varName)
			}
			return ""
		}

		return value
	})

	if len(e.missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(e.missing, ", "))
	}

	return result, nil
}
