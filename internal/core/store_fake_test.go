package core

import (
	"context"
	"sync"
)

// fakeStore is an in-memory Store used by the core tests.
type fakeStore struct {
	mu sync.Mutex

	names []string
	ids   []int64

	loadErr   error
	recordErr error
	failOn    map[string]error // student name -> persist error

	// afterPersist runs after each successful write with the write count.
	afterPersist func(n int)

	attempted []string
	persisted []StudentRecord
	runs      []ImportRun
}

func (f *fakeStore) LoadExistingKeys(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return NewSnapshot(f.names, f.ids), nil
}

func (f *fakeStore) Persist(ctx context.Context, rec StudentRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempted = append(f.attempted, rec.Name)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err, ok := f.failOn[rec.Name]; ok {
		return 0, err
	}
	f.persisted = append(f.persisted, rec)
	if f.afterPersist != nil {
		f.afterPersist(len(f.persisted))
	}
	return int64(len(f.persisted)), nil
}

func (f *fakeStore) RecordImport(ctx context.Context, run ImportRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if f.recordErr != nil {
		return f.recordErr
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeStore) ListStudents(ctx context.Context, limit, offset int) ([]Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Student
	for i := len(f.persisted) - 1; i >= 0; i-- {
		out = append(out, Student{ID: int64(i + 1), StudentRecord: f.persisted[i]})
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListImports(ctx context.Context, limit int) ([]ImportRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.runs) > limit {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type recordingObserver struct {
	mu      sync.Mutex
	results []ImportResult
}

func (o *recordingObserver) ObserveImport(res ImportResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, res)
}
