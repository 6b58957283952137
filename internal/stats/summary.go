package stats

import "math"

// FitnessSummary condenses a best-by-generation series.
type FitnessSummary struct {
	Generations int     `json:"generations"`
	InitialBest float64 `json:"initial_best"`
	FinalBest   float64 `json:"final_best"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	BestMax     float64 `json:"best_max"`
	BestMin     float64 `json:"best_min"`
	Improvement float64 `json:"improvement"`
	// FirstAtMax is the first generation, counted from 1, that reached BestMax.
	FirstAtMax int `json:"first_at_max"`
}

func SummarizeFitness(bestByGeneration []float64) FitnessSummary {
	if len(bestByGeneration) == 0 {
		return FitnessSummary{}
	}
	summary := FitnessSummary{
		Generations: len(bestByGeneration),
		InitialBest: bestByGeneration[0],
		FinalBest:   bestByGeneration[len(bestByGeneration)-1],
		BestMax:     bestByGeneration[0],
		BestMin:     bestByGeneration[0],
		FirstAtMax:  1,
	}
	sum := 0.0
	for i, v := range bestByGeneration {
		sum += v
		if v > summary.BestMax {
			summary.BestMax = v
			summary.FirstAtMax = i + 1
		}
		summary.BestMin = math.Min(summary.BestMin, v)
	}
	n := float64(len(bestByGeneration))
	summary.BestMean = sum / n
	variance := 0.0
	for _, v := range bestByGeneration {
		d := v - summary.BestMean
		variance += d * d
	}
	summary.BestStd = math.Sqrt(variance / n)
	summary.Improvement = summary.FinalBest - summary.InitialBest
	return summary
}
