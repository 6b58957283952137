package geneticdfa

import (
	"errors"
	"os"
	"testing"

	"geneticdfa/internal/config"
	"geneticdfa/internal/genotype"
	"geneticdfa/internal/storage"
)

func writeChromosome(t *testing.T, path string, c *genotype.Chromosome) {
	t.Helper()
	data, err := storage.EncodeChromosome(genotype.ToRecord(c, storage.CurrentSchemaVersion, storage.CurrentCodecVersion))
	if err != nil {
		t.Fatalf("encode chromosome: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write chromosome: %v", err)
	}
}

func TestReadChromosomeRoundTrip(t *testing.T) {
	path := t.TempDir() + "/dfa.json"
	writeChromosome(t, path, smallDFA())

	c, err := ReadChromosome(path)
	if err != nil {
		t.Fatalf("read chromosome: %v", err)
	}
	if genotype.Describe(c) != genotype.Describe(smallDFA()) {
		t.Fatalf("round trip changed chromosome:\n%s\n%s", genotype.Describe(c), genotype.Describe(smallDFA()))
	}
}

func TestReadChromosomeRejectsDanglingEdge(t *testing.T) {
	path := t.TempDir() + "/dfa.json"
	data := `{"schema_version":1,"codec_version":1,"id":"dfa-1","start_state_id":0,` +
		`"states":[{"id":0},{"id":1},{"id":2,"is_accept":true}],` +
		`"edges":[{"id":0,"source":0,"target":7,"input":"a"}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write chromosome: %v", err)
	}

	c, err := ReadChromosome(path)
	if !errors.Is(err, genotype.ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v (%v)", err, c)
	}
}

func TestEvaluateRecordsFitness(t *testing.T) {
	c := smallDFA()
	score, err := Evaluate(c, sampleTraces(), config.Defaults())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if score != 31 {
		t.Fatalf("unexpected score: %f", score)
	}
	if c.Fitness == nil || *c.Fitness != score {
		t.Fatalf("expected fitness recorded on chromosome, got %v", c.Fitness)
	}

	if _, err := Evaluate(c, nil, config.Defaults()); err == nil {
		t.Fatal("expected error for empty traces")
	}
}

func TestCreateMutateCrossKeepInvariants(t *testing.T) {
	alphabet := []rune("01")
	rng := NewRand(3)
	settings := config.Defaults()

	for i := 0; i < 50; i++ {
		a, err := CreateChromosome(alphabet, rng)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		b, err := CreateChromosome(alphabet, rng)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		before := genotype.Describe(a)

		mutated, op, err := Mutate(a, alphabet, settings, rng)
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
		if op == "" {
			t.Fatal("expected operator name")
		}
		if genotype.Describe(a) != before {
			t.Fatalf("mutate changed parent via %s", op)
		}
		if err := mutated.Validate(); err != nil {
			t.Fatalf("mutated chromosome invalid after %s: %v", op, err)
		}

		x, y, err := Cross(a, b, alphabet, rng)
		if err != nil {
			t.Fatalf("cross: %v", err)
		}
		for _, child := range []*genotype.Chromosome{x, y} {
			if err := child.Validate(); err != nil {
				t.Fatalf("offspring invalid: %v", err)
			}
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := smallDFA()
	clone := Clone(c)
	clone.AddState(true)
	clone.Edges[0].Target = 3

	if len(c.States) != 3 || c.Edges[0].Target != 1 {
		t.Fatalf("clone shares storage with original: %s", genotype.Describe(c))
	}
}
