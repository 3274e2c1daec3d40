package importer

import (
	"strings"

	"go.uber.org/zap"

	"github.com/apexforge/apexcad/internal/meshutil"
	"github.com/apexforge/apexcad/internal/scene"
)

// reparentThreshold is the minimum match score (two exact tokens)
// before a leaf is moved under a container.
const reparentThreshold = 4

// reconstructHierarchy rebuilds nested assembly structure lost by the
// converter, by matching hyphen-delimited naming conventions: a part
// named AMS-30-511-100 belongs under a container named AMS-30-511-000.
// Every leaf is scored against every container; O(leaves × containers ×
// tokens) is acceptable because assemblies are small. Returns how many
// objects were reparented.
func (imp *Importer) reconstructHierarchy() int {
	type container struct {
		name   string
		tokens []string
	}
	// Candidates in creation order, so ties between equal-scoring
	// containers always resolve to the earliest record.
	var containers []container
	for _, objName := range imp.imported {
		o, err := imp.store.GetObject(objName)
		if err != nil || o.Kind != scene.KindEmpty {
			continue
		}
		containers = append(containers, container{
			name:   objName,
			tokens: nameTokens(objName),
		})
	}
	if len(containers) == 0 {
		imp.log.Debug("no containers available for hierarchy reconstruction")
		return 0
	}

	reparented := 0
	for _, objName := range imp.imported {
		o, err := imp.store.GetObject(objName)
		if err != nil || o.Kind != scene.KindMesh {
			continue
		}
		tokens := nameTokens(objName)

		var best string
		bestScore := 0
		for _, c := range containers {
			// A container never adopts its own namesake.
			if c.name == objName || sameTokens(tokens, c.tokens) {
				continue
			}
			score := matchScore(tokens, c.tokens)
			if score >= reparentThreshold && score > bestScore {
				best = c.name
				bestScore = score
			}
		}

		if best != "" && o.Parent != best {
			old := o.Parent
			if err := imp.store.SetParent(objName, best); err != nil {
				imp.log.Warn("reparent skipped", zap.String("object", objName), zap.Error(err))
				continue
			}
			reparented++
			imp.log.Debug("reparented by name match",
				zap.String("object", objName),
				zap.String("from", old),
				zap.String("to", best),
				zap.Int("score", bestScore))
		}
	}
	return reparented
}

// matchScore compares two token lists position by position: +2 for an
// exact match, +1 for a partial match (either token starts with the
// first two characters of the other), stopping at the first full
// mismatch.
func matchScore(a, b []string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	score := 0
	for i := 0; i < n; i++ {
		switch {
		case a[i] == b[i]:
			score += 2
		case partialMatch(a[i], b[i]):
			score++
		default:
			return score
		}
	}
	return score
}

func partialMatch(a, b string) bool {
	return strings.HasPrefix(a, prefix2(b)) || strings.HasPrefix(b, prefix2(a))
}

func prefix2(s string) string {
	if len(s) > 2 {
		return s[:2]
	}
	return s
}

// nameTokens splits a sanitized, deduplicated object name into
// upper-cased hyphen tokens.
func nameTokens(name string) []string {
	return strings.Split(strings.ToUpper(meshutil.BaseName(name)), "-")
}

func sameTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
