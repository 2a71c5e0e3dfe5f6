package composer

import "strings"

const (
	// lowerBandRatio is the share of max_words below which facts are added.
	lowerBandRatio = 0.6

	refinePriority = 100
	factPriority   = 1000
)

type clause struct {
	text      string
	words     int
	slot      string
	priority  int
	removable bool
	// fixed clauses are never shortened.
	fixed bool
	// element is the required element the clause covers, if any.
	element string
}

func newClause(text, slot string, priority int, removable bool) clause {
	return clause{text: text, words: len(strings.Fields(text)), slot: slot, priority: priority, removable: removable}
}

func elementClauseFor(text, slot, element string) clause {
	cl := newClause(text, slot, 0, false)
	cl.element = element
	return cl
}

func joinClauses(clauses []clause) string {
	parts := make([]string, 0, len(clauses))
	for _, cl := range clauses {
		parts = append(parts, cl.text)
	}
	return strings.Join(parts, " ")
}

func wordCount(clauses []clause) int {
	n := 0
	for _, cl := range clauses {
		n += cl.words
	}
	return n
}

func containsClause(clauses []clause, text string) bool {
	for _, cl := range clauses {
		if strings.EqualFold(cl.text, text) {
			return true
		}
	}
	return false
}

// inBand reports 0.6*max <= words <= max. Without a limit every length is in band.
func inBand(words, max int) bool {
	if max <= 0 {
		return true
	}
	return words <= max && float64(words) >= lowerBandRatio*float64(max)
}

// fit runs the trim/expand loop, one action per iteration, until the text is
// in band, no action applies, or the iteration ceiling is reached.
func (c *Composer) fit(clauses, facts []clause, max int) ([]clause, int) {
	if max <= 0 {
		return clauses, 0
	}

	next := 0
	iterations := 0
	for iterations < c.maxIterations {
		words := wordCount(clauses)
		switch {
		case words > max:
			if i := trimCandidate(clauses); i >= 0 {
				clauses = append(clauses[:i], clauses[i+1:]...)
			} else if i := shortenCandidate(clauses); i >= 0 {
				clauses = c.shorten(clauses, i, words-max)
			} else {
				return clauses, iterations
			}
		case float64(words) < lowerBandRatio*float64(max):
			appended := false
			for ; next < len(facts); next++ {
				if words+facts[next].words <= max {
					clauses = append(clauses, facts[next])
					next++
					appended = true
					break
				}
			}
			if !appended {
				return clauses, iterations
			}
		default:
			return clauses, iterations
		}
		iterations++
	}
	return clauses, iterations
}

// trimCandidate picks the removable clause with the highest priority number,
// the later one on ties.
func trimCandidate(clauses []clause) int {
	best := -1
	for i, cl := range clauses {
		if !cl.removable {
			continue
		}
		if best < 0 || cl.priority >= clauses[best].priority {
			best = i
		}
	}
	return best
}

// shortenCandidate picks the last clause that may be cut and covers no
// required element, else the longest clause that does.
func shortenCandidate(clauses []clause) int {
	best := -1
	for i := len(clauses) - 1; i >= 0; i-- {
		cl := clauses[i]
		if cl.fixed {
			continue
		}
		if cl.element == "" {
			return i
		}
		if best < 0 || cl.words > clauses[best].words {
			best = i
		}
	}
	return best
}

// shorten cuts excess words from the end of clause i, dropping it when
// nothing would remain. A clause covering a required element keeps enough
// words to still cover it; when no cut can, it is marked fixed instead.
func (c *Composer) shorten(clauses []clause, i, excess int) []clause {
	cl := clauses[i]
	words := strings.Fields(cl.text)
	keep := len(words) - excess

	if cl.element == "" {
		if keep <= 0 {
			return append(clauses[:i], clauses[i+1:]...)
		}
		cl.text = terminate(strings.Join(words[:keep], " "))
		cl.words = len(strings.Fields(cl.text))
		clauses[i] = cl
		return clauses
	}

	if keep < 1 {
		keep = 1
	}
	for ; keep < len(words); keep++ {
		text := terminate(strings.Join(words[:keep], " "))
		if c.validator.Covers(strings.ToLower(text), cl.element) {
			cl.text = text
			cl.words = len(strings.Fields(text))
			clauses[i] = cl
			return clauses
		}
	}
	cl.fixed = true
	clauses[i] = cl
	return clauses
}
