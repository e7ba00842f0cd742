package cache

import (
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// httpflowNamespace is a fixed, never-regenerated v5 namespace UUID for this
// module's cache keys, itself derived deterministically from the module
// path so every build of httpflow produces byte-identical keys.
var httpflowNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("github.com/kaelbridge/httpflow"))

// PrimaryKey addresses every cached variant of one URL.
type PrimaryKey string

// SecondaryKey addresses one specific cached variant (and names its body blob).
type SecondaryKey string

// DerivePrimaryKey hashes the canonical request URL (scheme, host, port,
// path, query) into a stable, platform-independent key.
func DerivePrimaryKey(canonicalURL string) PrimaryKey {
	return PrimaryKey(uuid.NewSHA1(httpflowNamespace, []byte(canonicalURL)).String())
}

// DeriveSecondaryKey hashes the primary key together with the sorted
// "name:value" pairs named by varyNames, read from requestHeaders (names
// lower-cased, values verbatim). With no vary names it hashes the primary
// key followed by "|" and nothing else, matching spec §4.2's "no Vary
// header" case.
func DeriveSecondaryKey(primary PrimaryKey, varyNames []string, requestHeaders http.Header) SecondaryKey {
	pairs := make([]string, 0, len(varyNames))
	for _, name := range varyNames {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" || lower == "*" {
			continue
		}
		pairs = append(pairs, lower+":"+requestHeaders.Get(lower))
	}
	sort.Strings(pairs)
	material := string(primary) + "|" + strings.Join(pairs, ",")
	return SecondaryKey(uuid.NewSHA1(httpflowNamespace, []byte(material)).String())
}

// varyNamesFromResponse extracts the header names listed in a response's
// Vary header, deduplicated, skipping "*".
func varyNamesFromResponse(h http.Header) []string {
	var names []string
	seen := map[string]bool{}
	for _, line := range h.Values("Vary") {
		for _, part := range strings.Split(line, ",") {
			name := strings.ToLower(strings.TrimSpace(part))
			if name == "" || name == "*" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// containsVaryStar reports whether the response's Vary header contains "*",
// which per spec §4.4.2 makes the response impossible to reuse from cache.
func containsVaryStar(h http.Header) bool {
	for _, line := range h.Values("Vary") {
		for _, part := range strings.Split(line, ",") {
			if strings.TrimSpace(part) == "*" {
				return true
			}
		}
	}
	return false
}
