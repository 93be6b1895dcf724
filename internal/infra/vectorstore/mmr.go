package vectorstore

import "math"

// MMR selects up to k indexes of candidates by maximal marginal relevance:
// each step picks the candidate maximising
//
//	lambda*sim(query, c) - (1-lambda)*max(sim(c, selected))
//
// starting from the candidate most similar to the query. lambda=1 is pure
// relevance ranking, lambda=0 pure diversity.
func MMR(query []float32, candidates [][]float32, k int, lambda float32) []int {
	k = min(k, len(candidates))
	if k <= 0 {
		return nil
	}

	toQuery := make([]float32, len(candidates))
	best := 0
	for i, c := range candidates {
		toQuery[i] = Cosine(query, c)
		if toQuery[i] > toQuery[best] {
			best = i
		}
	}

	selected := []int{best}
	taken := make([]bool, len(candidates))
	taken[best] = true
	// running max similarity of each candidate to the selected set
	redundancy := make([]float32, len(candidates))
	for i := range redundancy {
		redundancy[i] = float32(math.Inf(-1))
	}

	for len(selected) < k {
		last := candidates[selected[len(selected)-1]]
		pick, pickScore := -1, float32(math.Inf(-1))
		for i, c := range candidates {
			if taken[i] {
				continue
			}
			if s := Cosine(c, last); s > redundancy[i] {
				redundancy[i] = s
			}
			score := lambda*toQuery[i] - (1-lambda)*redundancy[i]
			if score > pickScore {
				pick, pickScore = i, score
			}
		}
		if pick < 0 {
			break
		}
		selected = append(selected, pick)
		taken[pick] = true
	}
	return selected
}
