package handler

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/sakif/wedding-rsvp/internal/apperror"
	"github.com/sakif/wedding-rsvp/internal/service"
)

const (
	// maxUploadBody caps one upload request (all files together).
	maxUploadBody = 512 << 20
	// multipartMemory is how much of a form stays in memory; the rest is
	// spooled to temp files by the mime/multipart package.
	multipartMemory = 32 << 20
)

// parseUpload reads a multipart form and opens every file under field.
// The returned cleanup closes the files and removes temp files; it is safe
// to call when err is non-nil.
func parseUpload(w http.ResponseWriter, r *http.Request, field string) ([]service.UploadFile, func(), error) {
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if r.Context().Err() != nil {
			return nil, noop, apperror.Cancelled("Upload cancelled.")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, apperror.ValidationFailed(field, "Upload is too large")
		}
		return nil, noop, apperror.ValidationFailed(field, "Upload must be a multipart form")
	}

	headers := r.MultipartForm.File[field]
	opened := make([]multipart.File, 0, len(headers))
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
		r.MultipartForm.RemoveAll()
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			cleanup()
			return nil, noop, err
		}
		opened = append(opened, f)
		files = append(files, service.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}
	return files, cleanup, nil
}
