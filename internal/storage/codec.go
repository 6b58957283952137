package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"geneticdfa/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var (
	ErrVersionMismatch = errors.New("record version mismatch")
	ErrNotInitialized  = errors.New("store is not initialized")
)

// Versioned returns the version stamp new records are written with.
func Versioned() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeChromosome(c model.ChromosomeRecord) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeChromosome(data []byte) (model.ChromosomeRecord, error) {
	var chromosome model.ChromosomeRecord
	if err := json.Unmarshal(data, &chromosome); err != nil {
		return model.ChromosomeRecord{}, err
	}
	if err := checkVersion(chromosome.VersionedRecord); err != nil {
		return model.ChromosomeRecord{}, err
	}
	return chromosome, nil
}

// EncodePopulationSnapshot packs a snapshot as zstd-compressed msgpack.
// Snapshots hold every chromosome of a generation, so they are the one
// record kind that is not stored as plain JSON.
func EncodePopulationSnapshot(p model.PopulationSnapshot) ([]byte, error) {
	raw, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Close()

	return encoder.EncodeAll(raw, nil), nil
}

func DecodePopulationSnapshot(data []byte) (model.PopulationSnapshot, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return model.PopulationSnapshot{}, err
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return model.PopulationSnapshot{}, fmt.Errorf("decompress snapshot: %w", err)
	}
	var snapshot model.PopulationSnapshot
	if err := msgpack.Unmarshal(raw, &snapshot); err != nil {
		return model.PopulationSnapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.PopulationSnapshot{}, err
	}
	for _, chromosome := range snapshot.Chromosomes {
		if err := checkVersion(chromosome.VersionedRecord); err != nil {
			return model.PopulationSnapshot{}, fmt.Errorf("chromosome %s: %w", chromosome.ID, err)
		}
	}
	return snapshot, nil
}

func EncodeLineage(records []model.LineageRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeLineage(data []byte) ([]model.LineageRecord, error) {
	var records []model.LineageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func EncodeTopChromosomes(top []model.TopChromosomeRecord) ([]byte, error) {
	return json.Marshal(top)
}

func DecodeTopChromosomes(data []byte) ([]model.TopChromosomeRecord, error) {
	var top []model.TopChromosomeRecord
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	for _, item := range top {
		if err := checkVersion(item.Chromosome.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return top, nil
}

func EncodeFitnessHistory(history []float64) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]float64, error) {
	var history []float64
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
