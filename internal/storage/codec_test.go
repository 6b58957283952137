package storage

import (
	"errors"
	"reflect"
	"testing"

	"geneticdfa/internal/model"
)

func TestChromosomeCodecRejectsVersionMismatch(t *testing.T) {
	record := sampleChromosomeRecord("dfa-1")
	record.CodecVersion = CurrentCodecVersion + 1

	data, err := EncodeChromosome(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeChromosome(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestRunCodecRoundTrip(t *testing.T) {
	run := model.RunRecord{
		VersionedRecord: Versioned(),
		ID:              "run-1",
		Alphabet:        "01",
		Generations:     40,
		BestFitness:     38,
		UpperBound:      40,
		StopReason:      "fitness_threshold",
	}
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != run {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestPopulationSnapshotCodecCompresses(t *testing.T) {
	chromosomes := make([]model.ChromosomeRecord, 0, 50)
	for i := 0; i < 50; i++ {
		chromosomes = append(chromosomes, sampleChromosomeRecord("dfa"))
	}
	snapshot := model.PopulationSnapshot{
		VersionedRecord: Versioned(),
		ID:              PopulationID("run-1", 1),
		RunID:           "run-1",
		Generation:      1,
		Alphabet:        "01",
		Chromosomes:     chromosomes,
	}

	data, err := EncodePopulationSnapshot(snapshot)
	if err != nil {
		t.Fatalf("encode snapshot: %v", err)
	}
	plain, err := EncodeChromosome(chromosomes[0])
	if err != nil {
		t.Fatalf("encode chromosome: %v", err)
	}
	if len(data) >= len(plain)*len(chromosomes)/2 {
		t.Fatalf("snapshot should compress repeated records: %d bytes", len(data))
	}

	decoded, err := DecodePopulationSnapshot(data)
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if decoded.ID != snapshot.ID || len(decoded.Chromosomes) != 50 {
		t.Fatalf("unexpected snapshot %s with %d chromosomes", decoded.ID, len(decoded.Chromosomes))
	}
	if !reflect.DeepEqual(chromosomes[0].Edges, decoded.Chromosomes[49].Edges) {
		t.Fatalf("edges changed: %+v", decoded.Chromosomes[49].Edges)
	}
	if f := decoded.Chromosomes[0].Fitness; f == nil || *f != 4 {
		t.Fatalf("unexpected fitness %v", f)
	}
}

func TestPopulationSnapshotCodecChecksNestedVersions(t *testing.T) {
	stale := sampleChromosomeRecord("dfa-old")
	stale.SchemaVersion = 0
	snapshot := model.PopulationSnapshot{
		VersionedRecord: Versioned(),
		ID:              "run-1/gen-1",
		Chromosomes:     []model.ChromosomeRecord{stale},
	}

	data, err := EncodePopulationSnapshot(snapshot)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodePopulationSnapshot(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestPopulationSnapshotCodecRejectsGarbage(t *testing.T) {
	if _, err := DecodePopulationSnapshot([]byte("not zstd")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestLineageCodecChecksVersion(t *testing.T) {
	data, err := EncodeLineage([]model.LineageRecord{{LineageID: 1, Operation: "seed"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeLineage(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}
