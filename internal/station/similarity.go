package station

import "strings"

// DuplicateThreshold is the similarity above which two utterances are the
// same question. It is tuned against Similarity below.
const DuplicateThreshold = 0.85

// Similarity returns the Ratcliff–Obershelp ratio of a and b in [0,1]:
// 2*M/T, where T is the total rune count and M the number of runes in the
// matching blocks found by taking the longest common block and recursing on
// the unmatched pieces to its left and right. Ties prefer the block that
// starts earliest in a, then in b. No junk heuristic is applied, so the
// result equals difflib.SequenceMatcher(None, a, b).ratio() for inputs under
// 200 runes.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(ra, rb)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	type span struct{ alo, ahi, blo, bhi int }
	matched := 0
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestMatch finds the longest common block of a[alo:ahi] and b[blo:bhi].
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestk int) {
	besti, bestj = alo, blo
	prev := make([]int, bhi-blo+1)
	cur := make([]int, bhi-blo+1)
	for i := alo; i < ahi; i++ {
		for j := blo; j < bhi; j++ {
			col := j - blo + 1
			if a[i] != b[j] {
				cur[col] = 0
				continue
			}
			k := prev[col-1] + 1
			cur[col] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		prev, cur = cur, prev
	}
	return besti, bestj, bestk
}

// IsSimilarQuestion compares two utterances after case-folding and trimming.
func IsSimilarQuestion(a, b string) bool {
	return Similarity(foldQuestion(a), foldQuestion(b)) > DuplicateThreshold
}

// CountRepeats returns how many prior utterances the new one duplicates.
func CountRepeats(utterance string, prior []string) int {
	n := 0
	for _, p := range prior {
		if IsSimilarQuestion(utterance, p) {
			n++
		}
	}
	return n
}

func foldQuestion(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
