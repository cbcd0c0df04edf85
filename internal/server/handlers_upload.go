package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"seedshare/internal/api"
	"seedshare/internal/models"
)

// multipartOverhead is the transport allowance above the file limit for form
// fields and part headers.
const multipartOverhead int64 = 1 << 20

const uploadSuccessMessage = "File uploaded successfully"

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.opts.MultipartMaxMemory); err != nil {
		s.writeServiceError(w, r, classifyMultipartError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	seedCode, err := requireSeedCode(r.PostFormValue("seed_code"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	kind, err := normalizeUploadType(r.PostFormValue("upload_type"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	metadata, err := normalizeMetadata(r.PostFormValue("metadata"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	in := SubmitInput{
		SeedCode: seedCode,
		Kind:     kind,
		Metadata: metadata,
		FileSize: -1,
	}
	switch kind {
	case models.KindFile:
		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeServiceError(w, r, badRequestCode(fmt.Errorf("file is required"), ErrCodeMissingRequired))
			return
		}
		defer file.Close()
		in.File = file
		in.FileName = header.Filename
		in.FileSize = header.Size
	case models.KindText:
		in.Text = r.PostFormValue("text_message")
	}

	rec, err := s.ingest.Submit(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, api.UploadResponse{
		Message:      uploadSuccessMessage,
		SeedCode:     rec.SeedCode,
		DownloadLink: s.downloadLink(rec.SeedCode),
		ExpiresAt:    rec.ExpiresAt,
	})
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return requestTooLarge()
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return badRequestCode(fmt.Errorf("expected a multipart/form-data body"), ErrCodeInvalidMultipart)
	}
	return badRequestCode(fmt.Errorf("invalid multipart body: %w", err), ErrCodeInvalidMultipart)
}
