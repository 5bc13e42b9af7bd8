package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kycportal/identity-verification-service/internal/ai"
	"github.com/kycportal/identity-verification-service/internal/models"
	"github.com/kycportal/identity-verification-service/internal/ocr"
	"github.com/kycportal/identity-verification-service/internal/storage"
	"github.com/kycportal/identity-verification-service/internal/verification"
)

// upload is one document image received in a multipart form.
type upload struct {
	docType     verification.DocumentType
	data        []byte
	contentType string
}

// extraction carries the per-request provider options.
type extraction struct {
	provider ai.Provider
	vision   bool
	language string
}

// VerifyUpload extracts every uploaded image concurrently and evaluates the
// resulting documents. Form fields: repeated "documents" files with a
// matching repeated "documentType" value each, optional aiProvider, model,
// useVisionModel and language.
func (h *Handler) VerifyUpload(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize*MaxDocuments)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, r, &verification.MalformedInputError{Index: -1, Reason: "file too large or invalid form data"})
		return
	}
	uploads, err := readUploads(r.MultipartForm)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	opts, err := h.extractionOptions(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	id := uuid.New()
	h.storeImages(ctx, id, uploads)

	inputs := make([]ai.Input, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, h.config.AI.Concurrency))
	for i, up := range uploads {
		g.Go(func() error {
			in, _, err := h.prepareInput(gctx, up, opts)
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			inputs[i] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.sendError(w, r, err)
		return
	}

	extractor := ai.NewExtractor(opts.provider).WithConcurrency(h.config.AI.Concurrency)
	extractStarted := time.Now()
	docs, err := extractor.ExtractAll(ctx, inputs)
	if err != nil {
		h.metrics.IncrementExtractionFailure(opts.provider.Name(), failureReason(err))
		h.sendError(w, r, err)
		return
	}
	h.metrics.ObserveExtraction(opts.provider.Name(), time.Since(extractStarted))

	resp, err := h.decide(ctx, id, docs)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	resp.Documents = docs
	resp.TotalDuration = time.Since(started).Seconds()
	writeJSON(w, http.StatusOK, resp)
}

// ExtractDocument turns one uploaded image into an ExtractedDocument without
// evaluating it. Accepts the image as "file" or "image".
func (h *Handler) ExtractDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, r, &verification.MalformedInputError{Index: -1, Reason: "file too large or invalid form data"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("image")
		if err != nil {
			h.sendError(w, r, &verification.MalformedInputError{Index: 0, Field: "file", Reason: "no file provided (use 'file' or 'image' field)"})
			return
		}
	}
	defer file.Close()

	up, err := readUpload(file, header, r.FormValue("documentType"), 0)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	opts, err := h.extractionOptions(r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	in, ocrDuration, err := h.prepareInput(ctx, up, opts)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	doc, aiDuration, err := ai.NewExtractor(opts.provider).Extract(ctx, in)
	if err != nil {
		h.metrics.IncrementExtractionFailure(opts.provider.Name(), failureReason(err))
		h.sendError(w, r, err)
		return
	}
	h.metrics.ObserveExtraction(opts.provider.Name(), time.Duration(aiDuration*float64(time.Second)))

	resp := models.ExtractResponse{
		Success:     true,
		Document:    doc,
		Provider:    opts.provider.Name(),
		OCRDuration: ocrDuration,
		AIDuration:  aiDuration,
	}
	if paths := h.storeImages(ctx, uuid.New(), []upload{up}); len(paths) == 1 {
		resp.ImagePath = paths[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

// StoreReference stores a verified document for later 1:1 comparison.
func (h *Handler) StoreReference(w http.ResponseWriter, r *http.Request) {
	var doc verification.ExtractedDocument
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		h.sendError(w, r, &verification.MalformedInputError{Index: -1, Reason: err.Error()})
		return
	}

	digest, err := storage.PutReference(r.Context(), doc)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.ReferenceResponse{Success: true, Digest: digest})
}

// GetReference returns a stored reference document by digest.
func (h *Handler) GetReference(w http.ResponseWriter, r *http.Request) {
	digest := mux.Vars(r)["digest"]
	doc, err := storage.GetReference(r.Context(), digest)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ReferenceResponse{Success: true, Digest: digest, Document: doc})
}

// extractionOptions reads the provider options. Vision mode defaults on for
// gemini and openai, which read color photos better than OCR text.
func (h *Handler) extractionOptions(r *http.Request) (extraction, error) {
	providerName := r.FormValue("aiProvider")
	if providerName == "" {
		providerName = h.config.AI.DefaultProvider
	}
	provider, err := h.newProvider(providerName, r.FormValue("model"))
	if err != nil {
		return extraction{}, err
	}

	visionParam := r.FormValue("useVisionModel")
	vision := visionParam == "true" || (visionParam == "" && (providerName == "gemini" || providerName == "openai"))

	language := r.FormValue("language")
	if language == "" {
		language = h.config.OCR.Language
	}
	return extraction{provider: provider, vision: vision, language: language}, nil
}

// prepareInput builds the extractor input. Outside vision mode the image is
// preprocessed and OCRed; the image is still attached so an empty OCR result
// falls back to vision extraction. Returns the OCR time in seconds.
func (h *Handler) prepareInput(ctx context.Context, up upload, opts extraction) (ai.Input, float64, error) {
	in := ai.Input{
		DocumentType: up.docType,
		ImageBase64:  ai.EncodeImage(up.data, up.contentType),
	}
	if opts.vision {
		return in, 0, nil
	}

	processed := h.preprocessor.Preprocess(ctx, up.data, ocr.Profile(h.config.OCR.Profile))
	text, duration, err := ocr.NewTesseractOCR(opts.language).ExtractText(ctx, processed)
	if err != nil {
		return ai.Input{}, duration, fmt.Errorf("OCR failed: %w", err)
	}
	in.OCRText = text
	return in, duration, nil
}

// storeImages uploads document images when storage is configured and
// returns the stored paths. Failures are logged and skipped.
func (h *Handler) storeImages(ctx context.Context, id uuid.UUID, uploads []upload) []string {
	if !storage.Available() {
		return nil
	}
	var paths []string
	for i, up := range uploads {
		filename := fmt.Sprintf("%02d_%s%s", i, up.docType, storage.GetFileExtension(up.contentType))
		path, err := storage.UploadDocumentImage(ctx, id.String(), filename, bytes.NewReader(up.data), int64(len(up.data)), up.contentType)
		if err != nil {
			logrus.WithError(err).WithField("verification_id", id).Warn("failed to store document image")
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func readUploads(form *multipart.Form) ([]upload, error) {
	files := form.File["documents"]
	types := form.Value["documentType"]
	if len(files) == 0 {
		return nil, &verification.MalformedInputError{Index: -1, Field: "documents", Reason: "no document files provided"}
	}
	if len(files) > MaxDocuments {
		return nil, &verification.MalformedInputError{Index: -1, Field: "documents", Reason: fmt.Sprintf("at most %d documents per request", MaxDocuments)}
	}
	if len(types) != len(files) {
		return nil, &verification.MalformedInputError{Index: -1, Field: "documentType",
			Reason: fmt.Sprintf("%d files but %d document types", len(files), len(types))}
	}

	uploads := make([]upload, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open document %d: %w", i, err)
		}
		up, err := readUpload(f, fh, types[i], i)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploads[i] = up
	}
	return uploads, nil
}

func readUpload(f multipart.File, header *multipart.FileHeader, docType string, index int) (upload, error) {
	dt := verification.DocumentType(docType).Canonical()
	if dt == "" {
		return upload{}, &verification.MalformedInputError{Index: index, Field: "documentType", Reason: "missing"}
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return upload{}, fmt.Errorf("failed to read document %d: %w", index, err)
	}
	if len(data) == 0 {
		return upload{}, &verification.MalformedInputError{Index: index, Field: "file", Reason: "empty file"}
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return upload{docType: dt, data: data, contentType: contentType}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ai.ErrUnparseableResponse):
		return "unparseable"
	case errors.Is(err, ai.ErrProviderUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	}
	return "error"
}
