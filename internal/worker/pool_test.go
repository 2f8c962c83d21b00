package worker_test

import (
	"sort"
	"testing"

	"github.com/speakloop/backend/internal/worker"
)

func TestPool_RunsEveryJob(t *testing.T) {
	p := worker.NewPool[int](3, 10)

	for i := 0; i < 10; i++ {
		n := i
		p.Submit(string(rune('a'+n)), func() int { return n * n })
	}
	p.Close()

	var got []int
	for r := range p.Results() {
		got = append(got, r.Output)
	}
	sort.Ints(got)

	if len(got) != 10 {
		t.Fatalf("expected 10 results, got %d", len(got))
	}
	for i, v := range got {
		if v != i*i {
			t.Errorf("expected %d at %d, got %d", i*i, i, v)
		}
	}
}

func TestPool_ResultCarriesJobID(t *testing.T) {
	p := worker.NewPool[string](1, 1)
	p.Submit("flush-42", func() string { return "done" })
	p.Close()

	r, ok := <-p.Results()
	if !ok {
		t.Fatal("expected a result")
	}
	if r.JobID != "flush-42" || r.Output != "done" {
		t.Errorf("expected flush-42/done, got %s/%s", r.JobID, r.Output)
	}
	if _, ok := <-p.Results(); ok {
		t.Error("expected results to be closed")
	}
}

func TestPool_CloseIsIdempotent(t *testing.T) {
	p := worker.NewPool[int](2, 0)
	p.Close()
	p.Close()
	for range p.Results() {
	}
}
