package scope

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// hashPayload is the canonical form a scope is reduced to before
// hashing. Field order is fixed by the struct; lists are deduplicated
// and sorted so equivalent scopes hash identically.
type hashPayload struct {
	Root     string   `json:"root,omitempty"`
	Includes []string `json:"includes,omitempty"`
	Excludes []string `json:"excludes,omitempty"`
	Since    string   `json:"since,omitempty"`
	Until    string   `json:"until,omitempty"`
}

// Hash computes the canonical identity hash of a scope.
//
// Two jobs with equal Hash, kind, and format are considered requests
// for the same data set; together with the content hash this enables
// duplicate-upload avoidance.
func Hash(s *Scope) (string, error) {
	if s == nil {
		return "", nil
	}

	payload := hashPayload{
		Root:     normalizeKeyField(s.Root),
		Includes: normalizeList(s.Includes),
		Excludes: normalizeList(s.Excludes),
		Since:    strings.TrimSpace(s.Since),
		Until:    strings.TrimSpace(s.Until),
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal scope hash payload: %w", err)
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeKeyField(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.TrimPrefix(trimmed, "/")
	return strings.TrimSuffix(trimmed, "/")
}

func normalizeList(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	unique := make(map[string]struct{})
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		unique[trimmed] = struct{}{}
	}
	if len(unique) == 0 {
		return nil
	}

	out := make([]string, 0, len(unique))
	for value := range unique {
		out = append(out, value)
	}
	// Sort for deterministic output
	sort.Strings(out)
	return out
}
