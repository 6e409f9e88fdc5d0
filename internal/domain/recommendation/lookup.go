// Package recommendation resolves a diagnosis label to treatment advice.
package recommendation

import (
	"sort"
	"strings"

	"github.com/garyjia/crop-guard/internal/domain/entity"
)

// Lookup finds advice for a diagnosis label using case-insensitive matching.
// A key matches when it contains the label or the label contains it; among
// several matches the key closest in length to the label wins, ties broken
// alphabetically. An empty label never matches.
func Lookup(label string) (entity.Recommendation, bool) {
	key, ok := bestMatch(normalize(label), conditions)
	if !ok {
		return clone(Unknown), false
	}
	return clone(conditions[key]), true
}

// LookupForCrop is Lookup with crop-specific advice taking precedence when the
// same condition is present in both tables.
func LookupForCrop(label string, crop entity.CropType) (entity.Recommendation, bool) {
	norm := normalize(label)
	key, ok := bestMatch(norm, conditions)
	if !ok {
		return clone(Unknown), false
	}
	if specific, ok := cropConditions[crop][key]; ok {
		return clone(specific), true
	}
	return clone(conditions[key]), true
}

// GetRecommendations returns the ordered advice steps for a label, or the
// fixed fallback steps when nothing matches.
func GetRecommendations(label string) []string {
	rec, _ := Lookup(label)
	return rec.Steps()
}

// Conditions lists every known condition key in sorted order.
func Conditions() []string {
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func bestMatch(label string, table map[string]entity.Recommendation) (string, bool) {
	if label == "" {
		return "", false
	}
	best, bestDist := "", -1
	for key := range table {
		if !strings.Contains(label, key) && !strings.Contains(key, label) {
			continue
		}
		dist := len(key) - len(label)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && key < best) {
			best, bestDist = key, dist
		}
	}
	return best, bestDist >= 0
}

func normalize(label string) string {
	label = strings.ToLower(label)
	label = strings.NewReplacer("_", " ", "-", " ").Replace(label)
	return strings.Join(strings.Fields(label), " ")
}

func clone(r entity.Recommendation) entity.Recommendation {
	if r.Symptoms != nil {
		r.Symptoms = append([]string{}, r.Symptoms...)
	}
	return r
}
