// Package featureflags reads runtime toggles from the environment. A flag
// named foo_bar is controlled by FLAG_FOO_BAR and is re-read on every call, so
// operators can flip it without a restart on platforms that hot-reload env.
package featureflags

import (
	"os"
	"sort"
	"strings"
)

// PublicSignup lets anyone create a user or owner account through /auth/signup
const PublicSignup = "public_signup"

// known lists every flag the service consults; Snapshot reports these.
var known = []string{PublicSignup}

func envName(flag string) string {
	return "FLAG_" + strings.ToUpper(flag)
}

// Enabled accepts 1/true/yes/on in any case. Anything else, including an
// unset variable, is off.
func Enabled(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(envName(name)))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Checker binds name for callers that only want a func() bool.
func Checker(name string) func() bool {
	return func() bool { return Enabled(name) }
}

// Snapshot returns the current value of every known flag, sorted by name.
func Snapshot() map[string]bool {
	names := append([]string(nil), known...)
	sort.Strings(names)
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = Enabled(name)
	}
	return out
}
