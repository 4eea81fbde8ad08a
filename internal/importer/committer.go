package importer

import "context"

// DefaultBatchSize is the number of tasks submitted per chunk.
const DefaultBatchSize = 10

// ChunkInserter persists one chunk of tasks as a single atomic unit.
// Satisfied by the pgx-backed store, which wraps each chunk in one
// transaction.
type ChunkInserter interface {
	InsertTaskChunk(ctx context.Context, tasks []ResolvedTask) error
}

// BatchCommitter partitions resolved tasks into contiguous fixed-size
// chunks, preserving order, and submits them sequentially: each chunk is
// awaited before the next is issued, so ordering across chunks is
// guaranteed and failure attribution is unambiguous.
type BatchCommitter struct {
	inserter  ChunkInserter
	batchSize int
}

// NewBatchCommitter creates a committer. A non-positive batchSize falls
// back to DefaultBatchSize.
func NewBatchCommitter(inserter ChunkInserter, batchSize int) *BatchCommitter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchCommitter{inserter: inserter, batchSize: batchSize}
}

// Commit submits the tasks chunk by chunk and returns the total count
// persisted. On the first chunk failure it stops, leaving earlier chunks
// persisted (no rollback), and returns a CommitError carrying the failed
// chunk index and the count committed so far.
func (c *BatchCommitter) Commit(ctx context.Context, tasks []ResolvedTask) (int, error) {
	committed := 0

	for i := 0; i < len(tasks); i += c.batchSize {
		end := i + c.batchSize
		if end > len(tasks) {
			end = len(tasks)
		}

		if err := c.inserter.InsertTaskChunk(ctx, tasks[i:end]); err != nil {
			return committed, &CommitError{
				Chunk:     i / c.batchSize,
				Committed: committed,
				Err:       err,
			}
		}
		committed += end - i
	}

	return committed, nil
}
