// Deposit generation using simplex noise.
// A richness field biases deposit sizes so that rich and poor regions cluster.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds deposit generation parameters.
type GenConfig struct {
	Bounds     Bounds
	Count      int
	MinSize    int
	MaxSize    int
	NoiseScale float64 // Sampling frequency of the richness field; 0 = uniform sizes
	Seed       int64
}

// GenerateField places cfg.Count deposits at random positions.
// Sizes stay within [MinSize, MaxSize].
func GenerateField(cfg GenConfig, rng *rand.Rand) *Field {
	richness := opensimplex.NewNormalized(cfg.Seed + 1)
	span := float64(cfg.MaxSize - cfg.MinSize)

	deposits := make([]Deposit, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		pos := RandomPoint(cfg.Bounds, rng)

		var weight float64
		if cfg.NoiseScale > 0 {
			// Half noise, half jitter so neighbouring deposits still differ.
			n := octaveNoise(richness, float64(pos.X), float64(pos.Y), 3, cfg.NoiseScale, 0.5)
			weight = n*0.5 + rng.Float64()*0.5
		} else {
			weight = rng.Float64()
		}

		size := float64(cfg.MinSize) + math.Round(weight*span)
		if size > float64(cfg.MaxSize) {
			size = float64(cfg.MaxSize)
		}
		deposits = append(deposits, Deposit{Position: pos, Size: size})
	}
	return NewField(deposits)
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
