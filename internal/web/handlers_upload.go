package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
	"github.com/raulbatres90/challenge-estudiantes/internal/intake"
)

const (
	// multipartOverhead is allowed on top of the file size for boundaries
	// and part headers.
	multipartOverhead = 1 << 20

	// multipartMemory is kept in memory before parts spill to disk.
	multipartMemory = 32 << 20
)

// RejectionResponse is returned with 400 when a file cannot be imported.
type RejectionResponse struct {
	Valid      bool                   `json:"valid"`
	ImportID   string                 `json:"import_id,omitempty"`
	Errors     []core.ValidationError `json:"errors"`
	ValidCount int                    `json:"valid_count"`
}

// UploadResponse is returned when inserts were attempted.
type UploadResponse struct {
	Success  bool                 `json:"success"`
	ImportID string               `json:"import_id"`
	Inserted int                  `json:"inserted"`
	Errors   []core.InsertFailure `json:"errors,omitempty"`
	Message  string               `json:"message"`
}

// ValidateResponse is the dry-run report.
type ValidateResponse struct {
	Valid      bool                   `json:"valid"`
	TotalRows  int                    `json:"total_rows"`
	ValidCount int                    `json:"valid_count"`
	Errors     []core.ValidationError `json:"errors"`
	Students   []core.StudentRecord   `json:"students,omitempty"`
}

// handleUpload validates an uploaded file and inserts its students when
// every row is valid.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, ds, err := s.readUpload(w, r)
	ctx := WithRequestMetadata(r.Context(), r)
	if err != nil {
		if isRequestError(err) {
			respondError(w, r, err, statusFor(err))
			return
		}
		res := s.service.RejectFile(ctx, name, err)
		writeJSONStatus(w, http.StatusBadRequest, toRejection(res))
		return
	}

	res, err := s.service.Import(ctx, name, ds)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if res.Phase == core.PhaseRejected {
		writeJSONStatus(w, http.StatusBadRequest, toRejection(res))
		return
	}

	writeJSON(w, toUploadResponse(res))
}

// handleValidate runs validation only and reports the outcome without
// writing anything.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	_, ds, err := s.readUpload(w, r)
	if err != nil {
		if isRequestError(err) {
			respondError(w, r, err, statusFor(err))
			return
		}
		writeJSONStatus(w, http.StatusBadRequest, ValidateResponse{
			Errors: []core.ValidationError{core.FileError(err)},
		})
		return
	}

	result, err := s.service.Validate(r.Context(), ds)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	errs := core.RejectionErrors(result)
	resp := ValidateResponse{
		Valid:      len(errs) == 0,
		TotalRows:  result.TotalRows,
		ValidCount: len(result.Accepted),
		Errors:     errs,
		Students:   result.Accepted,
	}
	if resp.Errors == nil {
		resp.Errors = []core.ValidationError{}
	}
	writeJSON(w, resp)
}

// readUpload extracts the "file" part and parses it. The returned name is
// set whenever a file part was found, even if parsing failed.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, core.Dataset, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", core.Dataset{}, intake.ErrFileTooLarge
		}
		return "", core.Dataset{}, errNoFile
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", core.Dataset{}, errNoFile
	}
	defer file.Close()

	if header.Filename == "" {
		return "", core.Dataset{}, errNoFile
	}

	ds, err := intake.Parse(header.Filename, file, maxSize)
	return header.Filename, ds, err
}

// isRequestError reports errors answered with a plain error response rather
// than a validation report.
func isRequestError(err error) bool {
	return errors.Is(err, errNoFile) ||
		errors.Is(err, intake.ErrUnsupportedType) ||
		errors.Is(err, intake.ErrFileTooLarge)
}

func toRejection(res core.ImportResult) RejectionResponse {
	errs := res.Errors
	if errs == nil {
		errs = []core.ValidationError{}
	}
	return RejectionResponse{
		Valid:      false,
		ImportID:   res.ImportID,
		Errors:     errs,
		ValidCount: res.ValidCount,
	}
}

func toUploadResponse(res core.ImportResult) UploadResponse {
	msg := fmt.Sprintf("Inserted %d students", res.Insert.Inserted)
	if len(res.Insert.Failures) > 0 {
		msg += " with some errors"
	}
	return UploadResponse{
		Success:  true,
		ImportID: res.ImportID,
		Inserted: res.Insert.Inserted,
		Errors:   res.Insert.Failures,
		Message:  msg,
	}
}
