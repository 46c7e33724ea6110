// Package viterbi finds the highest-scoring label path through emission and
// transition scores.
package viterbi

import (
	"math"

	"github.com/cognicore/nerpt/pkg/ner/internalerr"
	"github.com/cognicore/nerpt/pkg/ner/tagger"
)

// Result is a decoded path. Lattice holds the best score of any path ending
// in each label at each position. Backpointers is a flat arena indexed
// i*NumLabels+label, -1 at position 0.
type Result struct {
	Path         []tagger.Label  `json:"path"`
	Score        float64         `json:"score"`
	Lattice      []tagger.Scores `json:"lattice"`
	Backpointers []int           `json:"backpointers"`
	Confidence   []float64       `json:"confidence"`
}

// Decode runs Viterbi over emissions. Ties are broken toward the lower label
// index, so equal inputs always produce the same path. A nil transitions
// table scores every pair 0. A best path scoring below half of
// tagger.Impossible crossed an impossible edge and is reported as a decode
// error.
func Decode(emissions []tagger.Scores, transitions *tagger.Transitions, initial tagger.Scores) (Result, error) {
	n := len(emissions)
	if n == 0 {
		return Result{}, internalerr.New(internalerr.KindDecode, "empty emission table")
	}
	var trans tagger.Transitions
	if transitions != nil {
		trans = *transitions
	}
	if err := checkFinite(emissions, &trans, &initial); err != nil {
		return Result{}, err
	}

	const L = tagger.NumLabels
	res := Result{
		Lattice:      make([]tagger.Scores, n),
		Backpointers: make([]int, n*L),
		Confidence:   make([]float64, n),
	}
	for l := 0; l < L; l++ {
		res.Lattice[0][l] = initial[l] + emissions[0][l]
		res.Backpointers[l] = -1
	}
	for i := 1; i < n; i++ {
		for l := 0; l < L; l++ {
			best, arg := math.Inf(-1), 0
			for p := 0; p < L; p++ {
				s := res.Lattice[i-1][p] + trans[p][l]
				if s > best {
					best, arg = s, p
				}
			}
			res.Lattice[i][l] = best + emissions[i][l]
			res.Backpointers[i*L+l] = arg
		}
	}

	last := 0
	for l := 1; l < L; l++ {
		if res.Lattice[n-1][l] > res.Lattice[n-1][last] {
			last = l
		}
	}
	res.Score = res.Lattice[n-1][last]
	if res.Score < tagger.Impossible/2 {
		return Result{}, internalerr.New(internalerr.KindDecode,
			"no structurally valid path (best score %g)", res.Score)
	}

	res.Path = make([]tagger.Label, n)
	res.Path[n-1] = tagger.Label(last)
	for i := n - 1; i > 0; i-- {
		res.Path[i-1] = tagger.Label(res.Backpointers[i*L+int(res.Path[i])])
	}
	for i, col := range res.Lattice {
		res.Confidence[i] = softmaxAt(col, int(res.Path[i]))
	}
	return res, nil
}

func checkFinite(emissions []tagger.Scores, trans *tagger.Transitions, initial *tagger.Scores) error {
	bad := func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }
	for i, row := range emissions {
		for l, v := range row {
			if bad(v) {
				return internalerr.New(internalerr.KindDecode,
					"emission[%d][%s] is %v", i, tagger.Label(l), v)
			}
		}
	}
	for p, row := range trans {
		for l, v := range row {
			if bad(v) {
				return internalerr.New(internalerr.KindDecode,
					"transition %s->%s is %v", tagger.Label(p), tagger.Label(l), v)
			}
		}
	}
	for l, v := range initial {
		if bad(v) {
			return internalerr.New(internalerr.KindDecode, "initial[%s] is %v", tagger.Label(l), v)
		}
	}
	return nil
}

// softmaxAt is the share of column mass held by label k.
func softmaxAt(col tagger.Scores, k int) float64 {
	maxV := col[0]
	for _, v := range col[1:] {
		if v > maxV {
			maxV = v
		}
	}
	sum := 0.0
	for _, v := range col {
		sum += math.Exp(v - maxV)
	}
	return math.Exp(col[k]-maxV) / sum
}
