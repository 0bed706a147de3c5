package riskmodel

import (
	"fmt"
	"math"
	"sort"
)

// TrainingMetrics summarizes model quality over an evaluation set.
// All values are in [0,1].
type TrainingMetrics struct {
	Accuracy   float64 `json:"accuracy"`
	Precision  float64 `json:"precision"`
	Recall     float64 `json:"recall"`
	F1         float64 `json:"f1"`
	AUC        float64 `json:"auc"`
	BrierScore float64 `json:"brierScore"`
}

// Evaluate scores every sample with the model and computes classification
// metrics at the 0.5 operating point, plus the threshold-free AUC and
// Brier score.
func Evaluate(m *Model, samples []Sample) (*TrainingMetrics, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidDataset)
	}

	probs := make([]float64, len(samples))
	labels := make([]float64, len(samples))

	var tp, tn, fp, fn int
	var brierSum float64

	for i, s := range samples {
		p, err := m.Predict(s.Features)
		if err != nil {
			return nil, err
		}
		probs[i] = p
		labels[i] = s.Label

		actual := s.Label >= 0.5
		predicted := p >= 0.5
		switch {
		case actual && predicted:
			tp++
		case actual && !predicted:
			fn++
		case !actual && predicted:
			fp++
		default:
			tn++
		}

		diff := p - s.Label
		brierSum += diff * diff
	}

	total := float64(len(samples))
	metrics := &TrainingMetrics{
		Accuracy:   float64(tp+tn) / total,
		BrierScore: brierSum / total,
		AUC:        rankAUC(probs, labels),
	}

	if tp+fp > 0 {
		metrics.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		metrics.Recall = float64(tp) / float64(tp+fn)
	}
	if metrics.Precision+metrics.Recall > lossEpsilon {
		metrics.F1 = 2 * metrics.Precision * metrics.Recall / (metrics.Precision + metrics.Recall)
	}

	return metrics, nil
}

// rankAUC computes the area under the ROC curve as the Mann–Whitney U
// statistic with mid-rank tie handling: probabilities within 1e-9 of each
// other share the average rank of their group. With only one class present
// there is no ranking information, so 0.5 is returned.
func rankAUC(probs, labels []float64) float64 {
	n := len(probs)

	type pair struct {
		p     float64
		label float64
	}
	pairs := make([]pair, n)
	for i := range probs {
		pairs[i] = pair{p: probs[i], label: labels[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].p < pairs[j].p })

	var positives, negatives int
	var sumPositiveRanks float64

	for i := 0; i < n; {
		j := i
		for j+1 < n && pairs[j+1].p-pairs[i].p < 1e-9 {
			j++
		}
		// 1-based ranks i+1..j+1 share the group's average rank.
		avgRank := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			if pairs[k].label >= 0.5 {
				sumPositiveRanks += avgRank
			}
		}
		i = j + 1
	}

	for _, pr := range pairs {
		if pr.label >= 0.5 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0.5
	}

	p := float64(positives)
	auc := (sumPositiveRanks - p*(p+1)/2) / (p * float64(negatives))
	return math.Min(1, math.Max(0, auc))
}
