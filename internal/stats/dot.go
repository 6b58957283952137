package stats

import (
	"os"

	"gonum.org/v1/gonum/graph/encoding/dot"

	"geneticdfa/internal/genotype"
)

// MarshalDOT renders c as a Graphviz digraph. Accept states are double
// circles and the start state is bold.
func MarshalDOT(c *genotype.Chromosome, name string) ([]byte, error) {
	return dot.MarshalMulti(genotype.Graph(c), name, "", "  ")
}

func WriteDOT(path string, c *genotype.Chromosome, name string) error {
	data, err := MarshalDOT(c, name)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
