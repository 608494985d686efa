package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raulbatres90/challenge-estudiantes/internal/logging"
)

// DefaultKeyLoadTimeout bounds loading the existing names and ids.
const DefaultKeyLoadTimeout = time.Minute

// List limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Observer is notified when an import finishes, whatever its outcome.
type Observer interface {
	ObserveImport(res ImportResult)
}

type nopObserver struct{}

func (nopObserver) ObserveImport(ImportResult) {}

// Reader lists persisted data.
type Reader interface {
	ListStudents(ctx context.Context, limit, offset int) ([]Student, error)
	ListImports(ctx context.Context, limit int) ([]ImportRun, error)
}

// ServiceConfig holds the import settings of a Service.
type ServiceConfig struct {
	InsertWorkers     int
	ReservationPolicy ReservationPolicy
	MaxConcurrent     int
	MaxWait           time.Duration
	KeyLoadTimeout    time.Duration

	// Clock overrides time.Now for the start year check.
	Clock func() time.Time
}

// Service runs student imports: it loads the existing keys, validates the
// dataset, and inserts the accepted records when the whole file is valid.
type Service struct {
	store     Store
	reader    Reader
	validator *RecordValidator
	inserter  *BulkInserter
	limiter   *ImportLimiter
	observer  Observer

	keyLoadTimeout time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithObserver registers an observer for finished imports.
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithReader sets where ListStudents and ListImports read from.
func WithReader(r Reader) ServiceOption {
	return func(s *Service) {
		s.reader = r
	}
}

// NewService creates a Service backed by store. If store also implements
// Reader it is used for listings.
func NewService(store Store, cfg ServiceConfig, opts ...ServiceOption) *Service {
	vopts := []ValidatorOption{WithReservationPolicy(cfg.ReservationPolicy)}
	if cfg.Clock != nil {
		vopts = append(vopts, WithClock(cfg.Clock))
	}

	keyLoadTimeout := cfg.KeyLoadTimeout
	if keyLoadTimeout <= 0 {
		keyLoadTimeout = DefaultKeyLoadTimeout
	}

	s := &Service{
		store:     store,
		validator: NewRecordValidator(vopts...),
		inserter:  NewBulkInserter(store, cfg.InsertWorkers),
		limiter:   NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		observer:  nopObserver{},

		keyLoadTimeout: keyLoadTimeout,
	}
	if r, ok := store.(Reader); ok {
		s.reader = r
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limiter exposes the import limiter, used to drain imports on shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// Validate checks ds against the persisted keys without writing anything.
func (s *Service) Validate(ctx context.Context, ds Dataset) (ValidationResult, error) {
	existing, err := s.loadKeys(ctx)
	if err != nil {
		return ValidationResult{}, err
	}
	return s.validator.Validate(ds, existing), nil
}

func (s *Service) loadKeys(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.keyLoadTimeout)
	defer cancel()

	existing, err := s.store.LoadExistingKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing keys: %w", err)
	}
	return existing, nil
}

// Import validates ds and, if every row is valid, inserts all of it.
//
// A dataset with any error is rejected as a whole and nothing is written.
// Once inserting starts, a failed record does not stop the others and
// earlier inserts are kept. The returned error is reserved for failures
// that prevent the import from running at all.
//
// Cancelling ctx only matters until the existing keys are loaded. After
// that the batch and its history entry run to completion.
func (s *Service) Import(ctx context.Context, fileName string, ds Dataset) (ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportResult{}, err
	}
	defer s.limiter.Release()

	start := time.Now()
	res := ImportResult{
		ImportID:  uuid.New().String(),
		FileName:  fileName,
		TotalRows: len(ds.Rows),
	}
	logger := logging.WithFields(ctx, "import_id", res.ImportID, "file", fileName)

	existing, err := s.loadKeys(ctx)
	if err != nil {
		logger.Error("load existing keys failed", "error", err)
		return ImportResult{}, err
	}

	// Request values (client IP, user agent, request id) are kept.
	ctx = context.WithoutCancel(ctx)

	validation := s.validator.Validate(ds, existing)
	res.ValidCount = len(validation.Accepted)

	if errs := RejectionErrors(validation); len(errs) > 0 {
		res.Phase = PhaseRejected
		res.Errors = errs
	} else {
		res.Phase = PhaseCompleted
		res.Insert = s.inserter.Insert(ctx, validation.Accepted)
	}

	res.Duration = time.Since(start)
	s.record(ctx, res)
	s.observer.ObserveImport(res)

	logger.Info("import finished",
		"phase", res.Phase,
		"rows", res.TotalRows,
		"accepted", res.ValidCount,
		"rejected", res.TotalRows-res.ValidCount,
		"errors", len(res.Errors),
		"inserted", res.Insert.Inserted,
		"failed", len(res.Insert.Failures),
		"duration", res.Duration,
	)

	return res, nil
}

// RejectionErrors returns the errors that keep v from being imported: its
// own errors, or a file-level error when no row was accepted.
func RejectionErrors(v ValidationResult) []ValidationError {
	if !v.Valid() {
		return v.Errors
	}
	if len(v.Accepted) == 0 {
		return []ValidationError{NoValidRowsError()}
	}
	return nil
}

// RejectFile reports a file that could not be parsed. The result carries a
// single file-level error and is observed like any other rejected import.
func (s *Service) RejectFile(ctx context.Context, fileName string, cause error) ImportResult {
	res := ImportResult{
		ImportID: uuid.New().String(),
		FileName: fileName,
		Phase:    PhaseRejected,
		Errors:   []ValidationError{FileError(cause)},
	}
	s.observer.ObserveImport(res)
	logging.WithFields(ctx, "import_id", res.ImportID, "file", fileName).
		Warn("file rejected", "error", cause)
	return res
}

// record writes the run to the import history. A failure is logged and
// does not change the outcome of the import.
func (s *Service) record(ctx context.Context, res ImportResult) {
	run := ImportRun{
		ID:        res.ImportID,
		FileName:  res.FileName,
		TotalRows: res.TotalRows,
		Accepted:  res.ValidCount,
		Rejected:  res.TotalRows - res.ValidCount,
		Inserted:  res.Insert.Inserted,
		Failed:    len(res.Insert.Failures),
		ClientIP:  ClientIPFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.RecordImport(ctx, run); err != nil {
		logging.FromContext(ctx).Warn("record import run failed",
			"import_id", res.ImportID,
			"error", err,
		)
	}
}

// ListStudents returns persisted students, newest first.
func (s *Service) ListStudents(ctx context.Context, limit, offset int) ([]Student, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("list students: no reader configured")
	}
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	students, err := s.reader.ListStudents(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// ListImports returns the most recent import runs.
func (s *Service) ListImports(ctx context.Context, limit int) ([]ImportRun, error) {
	if s.reader == nil {
		return nil, fmt.Errorf("list imports: no reader configured")
	}
	runs, err := s.reader.ListImports(ctx, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	return runs, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
