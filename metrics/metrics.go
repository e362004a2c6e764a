// Package metrics aggregates per-label true/false positive counts into
// precision, recall and F1, with both micro and macro averaging. Datasets
// decide what counts as a hit; this package only does the arithmetic.
package metrics

import "sort"

// Counts holds true positives, false positives and false negatives for one
// label.
type Counts struct {
	TP int
	FP int
	FN int
}

// Add returns the element-wise sum of two Counts.
func (c Counts) Add(o Counts) Counts {
	return Counts{TP: c.TP + o.TP, FP: c.FP + o.FP, FN: c.FN + o.FN}
}

// Scores holds derived precision/recall/F1 values.
type Scores struct {
	Precision float64
	Recall    float64
	F1        float64
}

// FromCounts derives Scores from raw counts. Divisions by zero yield zero
// rather than NaN so empty labels do not poison averages.
func FromCounts(c Counts) Scores {
	var s Scores
	if c.TP+c.FP > 0 {
		s.Precision = float64(c.TP) / float64(c.TP+c.FP)
	}
	if c.TP+c.FN > 0 {
		s.Recall = float64(c.TP) / float64(c.TP+c.FN)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// Micro pools the counts of all labels and computes a single set of scores.
// Frequent labels dominate the result.
func Micro(byLabel map[string]Counts) Scores {
	var total Counts
	for _, c := range byLabel {
		total = total.Add(c)
	}
	return FromCounts(total)
}

// Macro computes scores per label and averages them, giving every label the
// same weight regardless of frequency. Labels are visited in sorted order so
// the (order-independent) result is reproducible under debugging.
func Macro(byLabel map[string]Counts) Scores {
	if len(byLabel) == 0 {
		return Scores{}
	}
	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var sum Scores
	for _, label := range labels {
		s := FromCounts(byLabel[label])
		sum.Precision += s.Precision
		sum.Recall += s.Recall
		sum.F1 += s.F1
	}
	n := float64(len(labels))
	return Scores{
		Precision: sum.Precision / n,
		Recall:    sum.Recall / n,
		F1:        sum.F1 / n,
	}
}
