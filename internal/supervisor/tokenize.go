package supervisor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// npmLaunchers are the first tokens recognized as "npm-like" for the
// transparent direct-execution substitution below.
var npmLaunchers = map[string]bool{
	"npm":  true,
	"npx":  true,
	"pnpm": true,
	"yarn": true,
	"bun":  true,
}

// shellMetaChars disqualifies a package.json start script from direct
// substitution: its body must be safe to exec without a shell.
const shellMetaChars = `&|><;` + "`" + `$(){}[]`

// tokenizeCommand splits a command line respecting single and double
// quotes, the same shape as a POSIX shell's word-splitting without
// expansion.
func tokenizeCommand(line string) []string {
	var tokens []string
	var cur strings.Builder
	var inSingle, inDouble bool
	hasToken := false

	flush := func() {
		if hasToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasToken = false
		}
	}

	for _, r := range line {
		switch {
		case inSingle:
			if r == '\'' {
				inSingle = false
			} else {
				cur.WriteRune(r)
			}
		case inDouble:
			if r == '"' {
				inDouble = false
			} else {
				cur.WriteRune(r)
			}
		case r == '\'':
			inSingle = true
			hasToken = true
		case r == '"':
			inDouble = true
			hasToken = true
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
			hasToken = true
		}
	}
	flush()
	return tokens
}

type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
}

// resolveStartCommand tokenizes start, and if the first token is an
// npm-like launcher with a package.json "start"
// script free of shell metacharacters, substitute the script body so the
// child is spawned directly rather than through a launcher/shell.
func resolveStartCommand(start, cwd string) []string {
	tokens := tokenizeCommand(start)
	if len(tokens) == 0 {
		return tokens
	}
	if !npmLaunchers[tokens[0]] {
		return tokens
	}
	if direct := directInterpreterCommand(cwd); direct != nil {
		return direct
	}
	return tokens
}

// directInterpreterCommand reads cwd's package.json "start" script and
// tokenizes it, bypassing the npm-like launcher entirely. Returns nil if
// package.json is unreadable, has no start script, or that script needs a
// shell (contains metacharacters or &&/||).
func directInterpreterCommand(cwd string) []string {
	data, err := os.ReadFile(filepath.Join(cwd, "package.json"))
	if err != nil {
		return nil
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}
	script, ok := pkg.Scripts["start"]
	if !ok {
		return nil
	}
	if strings.ContainsAny(script, shellMetaChars) || strings.Contains(script, "&&") || strings.Contains(script, "||") {
		return nil
	}
	return tokenizeCommand(script)
}
