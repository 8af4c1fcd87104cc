package meta

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// ExpandEnv replaces every ${env.KEY} in value with lookup(KEY). A nil
// lookup reads the process environment. Expressions with a key that is not
// made of letters, digits or '_' are kept literally; an unterminated
// expression ends expansion.
func ExpandEnv(value string, lookup func(string) string) string {
	if lookup == nil {
		lookup = os.Getenv
	}
	if !strings.Contains(value, envPrefix) {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	i := 0
	for {
		idx := strings.Index(value[i:], envPrefix)
		if idx < 0 {
			b.WriteString(value[i:])
			break
		}
		b.WriteString(value[i : i+idx])
		start := i + idx + len(envPrefix)
		end := strings.IndexByte(value[start:], '}')
		if end < 0 {
			b.WriteString(value[i+idx:])
			break
		}
		key := value[start : start+end]
		if !isEnvKey(key) {
			// keep the prefix and rescan what follows it
			b.WriteString(envPrefix)
			i = start
			continue
		}
		b.WriteString(lookup(key))
		i = start + end + 1
	}
	return b.String()
}

func isEnvKey(key string) bool {
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
