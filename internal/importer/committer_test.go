package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeInserter records every submitted chunk and can be told to fail at a
// given chunk index.
type fakeInserter struct {
	chunks   [][]ResolvedTask
	failAt   int // chunk index to fail at; -1 never fails
	failWith error
}

func (f *fakeInserter) InsertTaskChunk(ctx context.Context, tasks []ResolvedTask) error {
	if f.failAt >= 0 && len(f.chunks) == f.failAt {
		return f.failWith
	}
	chunk := append([]ResolvedTask(nil), tasks...)
	f.chunks = append(f.chunks, chunk)
	return nil
}

func makeTasks(n int) []ResolvedTask {
	tasks := make([]ResolvedTask, n)
	for i := range tasks {
		tasks[i] = ResolvedTask{Title: fmt.Sprintf("task %d", i)}
	}
	return tasks
}

func TestBatchCommitter_ChunkShape(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		batchSize  int
		wantChunks []int // expected chunk sizes, in order
	}{
		{"exact multiple", 20, 10, []int{10, 10}},
		{"remainder chunk", 23, 10, []int{10, 10, 3}},
		{"single partial chunk", 2, 10, []int{2}},
		{"batch of one", 3, 1, []int{1, 1, 1}},
		{"empty input", 0, 10, nil},
		{"default batch size", 11, 0, []int{10, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ins := &fakeInserter{failAt: -1}
			count, err := NewBatchCommitter(ins, tt.batchSize).Commit(context.Background(), makeTasks(tt.total))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if count != tt.total {
				t.Errorf("committed = %d, want %d", count, tt.total)
			}
			if len(ins.chunks) != len(tt.wantChunks) {
				t.Fatalf("chunks = %d, want %d", len(ins.chunks), len(tt.wantChunks))
			}
			for i, size := range tt.wantChunks {
				if len(ins.chunks[i]) != size {
					t.Errorf("chunk %d size = %d, want %d", i, len(ins.chunks[i]), size)
				}
			}
		})
	}
}

func TestBatchCommitter_PreservesOrder(t *testing.T) {
	ins := &fakeInserter{failAt: -1}
	_, err := NewBatchCommitter(ins, 4).Commit(context.Background(), makeTasks(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	i := 0
	for _, chunk := range ins.chunks {
		for _, task := range chunk {
			want := fmt.Sprintf("task %d", i)
			if task.Title != want {
				t.Fatalf("submission order broken: got %q, want %q", task.Title, want)
			}
			i++
		}
	}
}

func TestBatchCommitter_StopsOnFirstFailure(t *testing.T) {
	cause := errors.New("connection reset")
	ins := &fakeInserter{failAt: 2, failWith: cause}

	count, err := NewBatchCommitter(ins, 10).Commit(context.Background(), makeTasks(35))

	var commitErr *CommitError
	if !errors.As(err, &commitErr) {
		t.Fatalf("error type = %T, want *CommitError", err)
	}
	if commitErr.Chunk != 2 {
		t.Errorf("failed chunk = %d, want 2", commitErr.Chunk)
	}
	if !errors.Is(err, cause) {
		t.Error("underlying cause must be wrapped")
	}

	// Chunks before the failure stay persisted; their sizes sum to the
	// reported committed count.
	if count != 20 || commitErr.Committed != 20 {
		t.Errorf("committed = %d/%d, want 20", count, commitErr.Committed)
	}
	if len(ins.chunks) != 2 {
		t.Errorf("submitted chunks after failure = %d, want 2 (no further submissions)", len(ins.chunks))
	}
}
