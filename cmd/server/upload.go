package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"rag-chatbot/internal/app"
	"rag-chatbot/internal/httputil"
	"rag-chatbot/internal/parser"
	"rag-chatbot/internal/schema"
)

const (
	// multipartOverhead allows for boundaries and part headers around the file.
	multipartOverhead = 1 << 20
	// maxMemory is how much of the form ParseMultipartForm keeps in memory.
	maxMemory = 32 << 20
)

func uploadHandler(deps *app.Deps) http.HandlerFunc {
	maxFileSize := min(deps.Config.MaxUploadSize, parser.MaxFileSize)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := deps.Log.With("request_id", requestID(r))
		reject := func(message string, err error, status int) {
			deps.Metrics.RecordUpload("rejected")
			httputil.Fail(log, w, message, err, status)
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+multipartOverhead)
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				reject(tooLargeMessage(r.ContentLength, maxFileSize), err, http.StatusRequestEntityTooLarge)
				return
			}
			reject("file: expected a multipart/form-data body with a 'file' field", err, http.StatusUnprocessableEntity)
			return
		}
		defer r.MultipartForm.RemoveAll()

		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			// A part without a filename is parsed as a plain form value.
			if _, ok := r.MultipartForm.Value["file"]; ok {
				reject("Filename is required", nil, http.StatusBadRequest)
				return
			}
			reject("file: field required", nil, http.StatusUnprocessableEntity)
			return
		}
		header := files[0]

		filename := rawFilename(header)
		if filename == "" {
			reject("Filename is required", nil, http.StatusBadRequest)
			return
		}
		if !hasPDFExtension(filename) {
			reject("Only PDF files are accepted", nil, http.StatusBadRequest)
			return
		}
		log = log.With("filename", filename)

		if header.Size > maxFileSize {
			reject(tooLargeMessage(header.Size, maxFileSize), nil, http.StatusRequestEntityTooLarge)
			return
		}

		content, err := readPart(header)
		if err != nil {
			deps.Metrics.RecordUpload("failed")
			httputil.Fail(log, w, "Failed to read uploaded file", err, http.StatusInternalServerError)
			return
		}

		doc, err := deps.Parser.Parse(content)
		if err != nil {
			var perr *parser.ParseError
			if errors.As(err, &perr) {
				reject(perr.Msg, err, http.StatusBadRequest)
				return
			}
			deps.Metrics.RecordUpload("failed")
			httputil.Fail(log, w, "Failed to process PDF", err, http.StatusInternalServerError)
			return
		}

		if err := deps.Ingest.Ingest(ctx, doc.Text, filename, doc.Metadata); err != nil {
			deps.Metrics.RecordUpload("failed")
			httputil.Fail(log, w, "Failed to store document in knowledge base", err, http.StatusInternalServerError)
			return
		}

		deps.Metrics.RecordUpload("ok")
		log.Info("pdf ingested", "pages", doc.Pages)
		httputil.WriteJSON(w, http.StatusOK, schema.PDFUploadResponse{
			Filename: filename,
			Pages:    doc.Pages,
			Success:  true,
		})
	}
}

// rawFilename returns the filename exactly as the client sent it.
// multipart.FileHeader.Filename is reduced to its base name.
func rawFilename(h *multipart.FileHeader) string {
	if cd := h.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name, ok := params["filename"]; ok {
				return name
			}
		}
	}
	return h.Filename
}

func hasPDFExtension(name string) bool {
	const ext = ".pdf"
	return len(name) >= len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}

func tooLargeMessage(size, limit int64) string {
	const mb = 1 << 20
	if size <= 0 {
		return fmt.Sprintf("File size exceeds maximum allowed (%dMB)", limit/mb)
	}
	return fmt.Sprintf("File size (%.1fMB) exceeds maximum allowed (%dMB)", float64(size)/mb, limit/mb)
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
