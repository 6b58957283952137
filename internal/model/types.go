package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version" msgpack:"schema_version"`
	CodecVersion  int `json:"codec_version" msgpack:"codec_version"`
}

// ChromosomeRecord is the persisted shape of one DFA genome.
type ChromosomeRecord struct {
	VersionedRecord
	ID           string        `json:"id" msgpack:"id"`
	LineageID    uint64        `json:"lineage_id" msgpack:"lineage_id"`
	StartStateID int           `json:"start_state_id" msgpack:"start_state_id"`
	NextStateID  int           `json:"next_state_id" msgpack:"next_state_id"`
	NextEdgeID   int           `json:"next_edge_id" msgpack:"next_edge_id"`
	States       []StateRecord `json:"states" msgpack:"states"`
	Edges        []EdgeRecord  `json:"edges" msgpack:"edges"`
	Fitness      *float64      `json:"fitness,omitempty" msgpack:"fitness,omitempty"`
}

type StateRecord struct {
	ID       int  `json:"id" msgpack:"id"`
	IsAccept bool `json:"is_accept" msgpack:"is_accept"`
}

type EdgeRecord struct {
	ID     int    `json:"id" msgpack:"id"`
	Source int    `json:"source" msgpack:"source"`
	Target int    `json:"target" msgpack:"target"`
	Input  string `json:"input" msgpack:"input"`
}

// PopulationSnapshot is the full population of one generation.
type PopulationSnapshot struct {
	VersionedRecord
	ID          string             `json:"id" msgpack:"id"`
	RunID       string             `json:"run_id" msgpack:"run_id"`
	Generation  int                `json:"generation" msgpack:"generation"`
	Alphabet    string             `json:"alphabet" msgpack:"alphabet"`
	Chromosomes []ChromosomeRecord `json:"chromosomes" msgpack:"chromosomes"`
}

// RunRecord summarizes one evolution run.
type RunRecord struct {
	VersionedRecord
	ID          string  `json:"id"`
	TracesPath  string  `json:"traces_path"`
	Alphabet    string  `json:"alphabet"`
	Generations int     `json:"generations"`
	BestFitness float64 `json:"best_fitness"`
	UpperBound  float64 `json:"upper_bound"`
	StopReason  string  `json:"stop_reason"`
	StartedAt   string  `json:"started_at"`
	FinishedAt  string  `json:"finished_at"`
}

type GenerationDiagnostics struct {
	Generation           int     `json:"generation"`
	BestFitness          float64 `json:"best_fitness"`
	MeanFitness          float64 `json:"mean_fitness"`
	MinFitness           float64 `json:"min_fitness"`
	FingerprintDiversity int     `json:"fingerprint_diversity"`
	SpeciesCount         int     `json:"species_count"`
	MeanStates           float64 `json:"mean_states"`
	MeanEdges            float64 `json:"mean_edges"`
	Mutations            int     `json:"mutations"`
	Crossovers           int     `json:"crossovers"`
	FailedMutations      int     `json:"failed_mutations"`
}

type LineageRecord struct {
	VersionedRecord
	LineageID   uint64   `json:"lineage_id"`
	ParentIDs   []uint64 `json:"parent_ids,omitempty"`
	Generation  int      `json:"generation"`
	Operation   string   `json:"operation"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

type TopChromosomeRecord struct {
	Rank       int              `json:"rank"`
	Fitness    float64          `json:"fitness"`
	Chromosome ChromosomeRecord `json:"chromosome"`
}
