package verifier

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ContextDelta scores how much observable text changed between two snapshots,
// in [0, 1]. Snapshots are trimmed and NFC-normalized first.
func ContextDelta(before, after string) float64 {
	a := norm.NFC.String(strings.TrimSpace(before))
	b := norm.NFC.String(strings.TrimSpace(after))

	switch {
	case a == "" && b == "":
		return 0
	case a != "" && b == "":
		return 0
	case a == "" && b != "":
		return 1
	}

	return 1 - Ratio(a, b)
}

// Ratio is the matching-block similarity 2*M/(len(a)+len(b)) over runes,
// where M is the total size of the recursively found longest common
// substrings. Two empty strings have ratio 1.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingTotal(ra, rb)) / float64(total)
}

type span struct {
	alo, ahi, blo, bhi int
}

func matchingTotal(a, b []rune) int {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	matched := 0
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b2j, s)
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

// longestMatch finds the longest common run inside s. Ties go to the
// earliest start in a, then the earliest start in b.
func longestMatch(a []rune, b2j map[rune][]int, s span) (besti, bestj, bestsize int) {
	besti, bestj = s.alo, s.blo
	j2len := map[int]int{}
	for i := s.alo; i < s.ahi; i++ {
		next := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < s.blo {
				continue
			}
			if j >= s.bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestsize
}
