// pattern.go runs Louvain community-detection phases over a
// bar-similarity graph, where nodes are one-bar note-pattern
// fingerprints and edge weight is pattern similarity; patternScore
// rewards charts whose bars cluster into a few large repeated-motif
// communities rather than one-off bars.
package quality

import (
	"math"

	"github.com/basswave/chartgen/internal/model"
)

type barFingerprint struct {
	laneHistogram [2]int
	kindHistogram [4]int
	count         int
}

func fingerprintBars(ctx *model.Context, notes []model.Note) []barFingerprint {
	beat := ctx.BeatInterval(0)
	barLen := 4 * beat
	if barLen <= 0 || ctx.Duration <= 0 {
		return nil
	}
	numBars := int(math.Ceil(ctx.Duration / barLen))
	bars := make([]barFingerprint, numBars)
	for _, n := range notes {
		idx := int(n.Time / barLen)
		if idx < 0 || idx >= numBars {
			continue
		}
		bars[idx].laneHistogram[n.Lane]++
		bars[idx].kindHistogram[n.Kind]++
		bars[idx].count++
	}
	return bars
}

func barSimilarity(a, b barFingerprint) float64 {
	if a.count == 0 && b.count == 0 {
		return 1
	}
	if a.count == 0 || b.count == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < 2; i++ {
		dot += float64(a.laneHistogram[i] * b.laneHistogram[i])
		na += float64(a.laneHistogram[i] * a.laneHistogram[i])
		nb += float64(b.laneHistogram[i] * b.laneHistogram[i])
	}
	for i := 0; i < 4; i++ {
		dot += float64(a.kindHistogram[i] * b.kindHistogram[i])
		na += float64(a.kindHistogram[i] * a.kindHistogram[i])
		nb += float64(b.kindHistogram[i] * b.kindHistogram[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// patternScore runs one Louvain local-moving phase over the bar-similarity
// graph (edges above a threshold) and scores repetition as the fraction of
// bars belonging to the largest community.
func patternScore(ctx *model.Context, notes []model.Note) float64 {
	bars := fingerprintBars(ctx, notes)
	n := len(bars)
	if n < 2 {
		return 1
	}

	const simThreshold = 0.55
	adjacency := make([][]float64, n)
	for i := range adjacency {
		adjacency[i] = make([]float64, n)
	}
	var totalWeight float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := barSimilarity(bars[i], bars[j])
			if w >= simThreshold {
				adjacency[i][j] = w
				adjacency[j][i] = w
				totalWeight += w
			}
		}
	}
	if totalWeight == 0 {
		return 0
	}

	community := make([]int, n)
	degree := make([]float64, n)
	for i := range community {
		community[i] = i
		for j := 0; j < n; j++ {
			degree[i] += adjacency[i][j]
		}
	}

	improved := true
	for iter := 0; improved && iter < 10; iter++ {
		improved = false
		for i := 0; i < n; i++ {
			current := community[i]
			best := current
			bestGain := 0.0
			neighborCommunities := map[int]float64{}
			for j := 0; j < n; j++ {
				if adjacency[i][j] > 0 {
					neighborCommunities[community[j]] += adjacency[i][j]
				}
			}
			for c, weightToC := range neighborCommunities {
				gain := weightToC - degree[i]*degree[i]/(2*totalWeight)
				if gain > bestGain {
					bestGain = gain
					best = c
				}
			}
			if best != current {
				community[i] = best
				improved = true
			}
		}
	}

	counts := map[int]int{}
	for _, c := range community {
		counts[c]++
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	return float64(maxCount) / float64(n)
}
