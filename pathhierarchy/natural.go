package pathhierarchy

import (
	"sort"
	"strconv"
)

// sortNatural sorts s in place using human-numeric order: maximal runs
// of ASCII digits compare as numbers rather than lexicographically, so
// "part2" sorts before "part10". Non-digit runs compare as plain
// strings. This is the Natural ordering discipline for MultiVolume
// parts (§3).
func sortNatural(s []string) {
	sort.SliceStable(s, func(i, j int) bool {
		return naturalLess(s[i], s[j])
	})
}

func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			ai := i
			for ai < len(a) && isDigit(a[ai]) {
				ai++
			}
			bj := j
			for bj < len(b) && isDigit(b[bj]) {
				bj++
			}
			na, errA := strconv.Atoi(a[i:ai])
			nb, errB := strconv.Atoi(b[j:bj])
			if errA == nil && errB == nil && na != nb {
				return na < nb
			}
			if a[i:ai] != b[j:bj] {
				return a[i:ai] < b[j:bj]
			}
			i, j = ai, bj
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
