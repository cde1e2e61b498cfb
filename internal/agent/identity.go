package agent

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

const (
	// MinNameLen and MaxNameLen bound a valid agent name.
	MinNameLen = 3
	MaxNameLen = 64
)

// nameEnvVars is the override resolution order for an explicit agent name.
var nameEnvVars = []string{
	"AI_AGENT_NAME",
	"AGENT_NAME",
	"MCP_CLIENT_NAME",
	"CLAUDE_AGENT_NAME",
}

// parentProcessNames maps known MCP client executables to agent base names.
// Used as a best-effort heuristic when no explicit override is set.
var parentProcessNames = map[string]string{
	"claude":   "claude-desktop",
	"code":     "vscode",
	"cursor":   "cursor",
	"zed":      "zed",
	"windsurf": "windsurf",
}

var validNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)

// ValidateName checks a name against the agent-name grammar: 3 to 64 chars
// of lowercase letters, digits, and single interior dashes.
func ValidateName(name string) error {
	if len(name) < MinNameLen || len(name) > MaxNameLen {
		return fmt.Errorf("agent name %q must be %d to %d characters",
			name, MinNameLen, MaxNameLen)
	}
	if !validNameRe.MatchString(name) {
		return fmt.Errorf("agent name %q must match "+
			"[a-z0-9][a-z0-9-]*[a-z0-9]", name)
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("agent name %q must not contain "+
			"consecutive dashes", name)
	}

	return nil
}

// SanitizeName normalizes an arbitrary candidate to the agent-name grammar:
// lowercase, invalid runes replaced by dashes, dash runs collapsed, edges
// trimmed, length capped. Returns false if nothing usable remains.
func SanitizeName(candidate string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToLower(candidate) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	name := b.String()
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}
	name = strings.Trim(name, "-")

	if len(name) > MaxNameLen {
		name = strings.TrimRight(name[:MaxNameLen], "-")
	}
	if len(name) < MinNameLen {
		return "", false
	}

	return name, true
}

// fallbackName builds the last-resort agent name from the short hostname.
func fallbackName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "host"
	}
	if i := strings.IndexByte(hostname, '.'); i > 0 {
		hostname = hostname[:i]
	}

	if name, ok := SanitizeName("agent-" + hostname); ok {
		return name
	}

	return "agent-unknown"
}

// parentProcessHint inspects the parent process name for a known MCP client.
// Linux only; elsewhere the lookup simply fails and the caller falls through.
func parentProcessHint() (string, bool) {
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", os.Getppid()))
	if err != nil {
		return "", false
	}

	proc := strings.TrimSpace(string(comm))
	for prefix, base := range parentProcessNames {
		if strings.HasPrefix(proc, prefix) {
			return base, true
		}
	}

	return "", false
}

// DetectName resolves the caller's base agent name: explicit environment
// override first, then the parent-process heuristic, then the hostname
// fallback. The result always satisfies the name grammar.
func DetectName() string {
	for _, env := range nameEnvVars {
		value := strings.TrimSpace(os.Getenv(env))
		if value == "" {
			continue
		}
		if name, ok := SanitizeName(value); ok {
			return name
		}
	}

	if base, ok := parentProcessHint(); ok {
		return base
	}

	return fallbackName()
}

// EnsureUniqueName resolves name collisions for a detected base name: the
// base itself if unregistered, otherwise base-2, base-3, and so on until a
// free name is found. Every startup that finds its base taken gets the next
// free suffix, including a second instance on the same machine.
func EnsureUniqueName(ctx context.Context, storage store.Storage,
	base string) (string, error) {

	taken, err := storage.AgentExists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("failed to check name %q: %w", base, err)
	}
	if !taken {
		return base, nil
	}

	for n := 2; ; n++ {
		suffix := "-" + strconv.Itoa(n)
		candidate := base
		if len(candidate)+len(suffix) > MaxNameLen {
			candidate = strings.TrimRight(
				candidate[:MaxNameLen-len(suffix)], "-",
			)
		}
		candidate += suffix

		taken, err := storage.AgentExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check name %q: %w",
				candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
}
