package loadgen

import (
	"math/rand/v2"

	"clima-relay/internal/modules/clima/types"
)

var (
	municipios = []string{"Mixco", "Guatemala", "Villa Nueva", "Amatitlán", "Antigua"}
	climas     = []string{"Soleado", "Nublado", "Lluvioso", "Ventoso"}
)

// Generator produces random observations: temperature in [15,30), humidity
// in [50,100). It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *Generator) Next() types.Observation {
	return types.Observation{
		Name:        municipios[g.rng.IntN(len(municipios))],
		Temperatura: int32(15 + g.rng.IntN(15)),
		Humedad:     int32(50 + g.rng.IntN(50)),
		Clima:       climas[g.rng.IntN(len(climas))],
	}
}
