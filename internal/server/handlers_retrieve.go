package server

import (
	"bufio"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"seedshare/internal/api"
	"seedshare/internal/blobstore"
	"seedshare/internal/models"
)

const sniffPreviewLen = 512

func (s *Server) handleResolvePost(w http.ResponseWriter, r *http.Request) {
	var raw string
	if isJSONRequest(r) {
		var req api.ResolveRequest
		if !s.decodeJSONReq(w, r, &req) {
			return
		}
		raw = req.SeedCode
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
		if err := r.ParseForm(); err != nil {
			s.writeServiceError(w, r, classifyDecodeJSONError(err))
			return
		}
		raw = r.PostFormValue("seed_code")
	}
	s.resolve(w, r, raw)
}

func (s *Server) handleResolveGet(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, chi.URLParam(r, "seed_code"))
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, raw string) {
	seedCode, err := requireSeedCode(raw)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	res, err := s.retrieval.Resolve(r.Context(), seedCode)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ResolveResponse{File: res.File, Text: res.Text})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupPathSeed(w, r)
	if !ok {
		return
	}
	obj, err := s.retrieval.OpenBlob(r.Context(), rec)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer obj.Close()

	name := blobstore.DisplayNameOr(rec.PayloadLocation)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Type", recordContentType(rec, name))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	s.serveObject(w, r, name, obj)
}

func (s *Server) handleViewFile(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookupPathSeed(w, r)
	if !ok {
		return
	}
	if !rec.IsFile() {
		s.writeJSON(w, http.StatusOK, api.PreviewContentResponse{
			FileContent: rec.PayloadLocation,
			FileName:    rec.SeedCode,
			FileType:    "text",
		})
		return
	}

	obj, err := s.retrieval.OpenBlob(r.Context(), rec)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer obj.Close()

	name := blobstore.DisplayNameOr(rec.PayloadLocation)
	switch classifyPreview(name, obj.SizeBytes) {
	case previewStream:
		buffered := bufio.NewReaderSize(obj, sniffPreviewLen)
		head, _ := buffered.Peek(sniffPreviewLen)
		w.Header().Set("Content-Type", streamContentType(name, head))
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": name}))
		if seeker, ok := obj.ReadCloser.(io.ReadSeeker); ok {
			if _, err := seeker.Seek(0, io.SeekStart); err == nil {
				http.ServeContent(w, r, name, obj.ModTime, seeker)
				return
			}
		}
		s.copyBody(w, r, obj.SizeBytes, buffered)
		return
	case previewContent:
		content, err := io.ReadAll(io.LimitReader(obj, maxInlinePreviewBytes+1))
		if err != nil {
			s.writeServiceError(w, r, blobFailure(fmt.Errorf("read %s: %w", rec.PayloadLocation, err)))
			return
		}
		if len(content) <= maxInlinePreviewBytes {
			s.writeJSON(w, http.StatusOK, api.PreviewContentResponse{
				FileContent: string(content),
				FileName:    name,
				FileType:    "text",
			})
			return
		}
	}

	s.writeJSON(w, http.StatusOK, api.PreviewLinkResponse{
		FileName:    name,
		FileType:    fileExtension(name),
		DownloadURL: s.downloadLink(rec.SeedCode),
	})
}

func (s *Server) lookupPathSeed(w http.ResponseWriter, r *http.Request) (models.Record, bool) {
	seedCode, err := requireSeedCode(chi.URLParam(r, "seed_code"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return models.Record{}, false
	}
	rec, err := s.retrieval.Lookup(r.Context(), seedCode)
	if err != nil {
		s.writeServiceError(w, r, err)
		return models.Record{}, false
	}
	return rec, true
}

// serveObject prefers http.ServeContent so range and conditional requests
// work for local files.
func (s *Server) serveObject(w http.ResponseWriter, r *http.Request, name string, obj *blobstore.Object) {
	if seeker, ok := obj.ReadCloser.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, obj.ModTime, seeker)
		return
	}
	s.copyBody(w, r, obj.SizeBytes, obj)
}

func (s *Server) copyBody(w http.ResponseWriter, r *http.Request, size int64, body io.Reader) {
	if size >= 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.log().Warn("stream blob", "path", r.URL.Path, "error", err)
	}
}

// recordContentType uses the type sniffed at upload, then the extension.
// Caller metadata never decides it.
func recordContentType(rec models.Record, name string) string {
	if rec.ContentType != "" {
		return rec.ContentType
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
