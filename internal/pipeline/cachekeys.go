package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// ShortHash returns the first n hex chars of SHA-256 over the text; "none"
// for empty input so keys stay readable in logs.
func ShortHash(text string, n int) string {
	if strings.TrimSpace(text) == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(text))
	h := hex.EncodeToString(sum[:])
	if n > 0 && n < len(h) {
		h = h[:n]
	}
	return h
}

// PlannerCacheKey builds the plan-cache key. An empty session id disables
// caching entirely (returns ""): plans are personalized per session and a
// shared key would leak one user's plan into another's form.
func PlannerCacheKey(sessionID, servicesFingerprint, useCaseKey string) string {
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return ""
	}
	uc := strings.ToLower(strings.TrimSpace(useCaseKey))
	if uc == "" {
		uc = "none"
	}
	return fmt.Sprintf("question_plan:%s:%s:%s", sid, servicesFingerprint, uc)
}

// RenderCacheKey builds the render-output cache key. Allowed types are sorted
// first so the key is insensitive to list ordering; the schema version keeps
// entries from colliding across contract versions.
func RenderCacheKey(sessionID, schemaVersion, planJSON, renderContextJSON string, allowedMiniTypes []string) string {
	sid := strings.TrimSpace(sessionID)
	if sid == "" {
		return ""
	}
	types := make([]string, 0, len(allowedMiniTypes))
	for _, t := range allowedMiniTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			types = append(types, t)
		}
	}
	sort.Strings(types)

	return fmt.Sprintf("render:%s:%s:%s:%s:%s",
		sid,
		strings.TrimSpace(schemaVersion),
		ShortHash(planJSON, 10),
		ShortHash(renderContextJSON, 10),
		ShortHash(strings.Join(types, ","), 8),
	)
}
