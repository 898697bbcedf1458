package member

import domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"

const (
	batchingThreshold = 500
	smallInputRows    = 500
	largeInputRows    = 5000
	largeInputFloor   = 250
	maxChunkSize      = 1000
)

var capacityBaseChunk = map[domain.CapacityProfile]int{
	domain.CapacityLow:    100,
	domain.CapacityMedium: 200,
	domain.CapacityHigh:   300,
}

// BatchPlan is advisory; the engine splits parsed rows with Chunks.
type BatchPlan struct {
	EstimatedRows int  `json:"estimated_rows"`
	Batching      bool `json:"batching"`
	ChunkSize     int  `json:"chunk_size"`
	TotalBatches  int  `json:"total_batches"`
}

// PlanBatches is a pure function of its inputs.
func PlanBatches(estimatedRows int, profile domain.CapacityProfile, opts domain.UpsertOptions) BatchPlan {
	if estimatedRows < 0 {
		estimatedRows = 0
	}
	plan := BatchPlan{
		EstimatedRows: estimatedRows,
		Batching:      opts.ForceBatching || estimatedRows > batchingThreshold,
		ChunkSize:     chunkSize(estimatedRows, profile, opts.ChunkSize),
	}
	if !plan.Batching {
		plan.TotalBatches = 1
		return plan
	}
	plan.TotalBatches = batchCount(estimatedRows, plan.ChunkSize)
	return plan
}

func chunkSize(estimatedRows int, profile domain.CapacityProfile, override int) int {
	if override > 0 {
		return min(override, maxChunkSize)
	}
	size, ok := capacityBaseChunk[profile]
	if !ok {
		size = capacityBaseChunk[domain.CapacityMedium]
	}
	switch {
	case estimatedRows < smallInputRows:
		size /= 2
	case estimatedRows > largeInputRows:
		size = max(size, largeInputFloor)
	}
	return size
}

func batchCount(rows, size int) int {
	if rows <= 0 {
		return 1
	}
	return (rows + size - 1) / size
}

// Chunks splits rows into consecutive slices of at most size rows, or a single slice
// when batching is off.
func (p BatchPlan) Chunks(rows []domain.CandidateRow) [][]domain.CandidateRow {
	if !p.Batching || p.ChunkSize <= 0 || len(rows) <= p.ChunkSize {
		return [][]domain.CandidateRow{rows}
	}
	out := make([][]domain.CandidateRow, 0, batchCount(len(rows), p.ChunkSize))
	for start := 0; start < len(rows); start += p.ChunkSize {
		end := min(start+p.ChunkSize, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}
