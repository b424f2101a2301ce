package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/phrazzld/docstream/internal/api/shared"
	"github.com/phrazzld/docstream/internal/domain"
	"github.com/phrazzld/docstream/internal/service/analysis"
)

// Request headers carrying per-request credentials.
const (
	HeaderParserKey   = "X-MinerU-API-Key"
	HeaderAnalyzerKey = "X-API-Key"
	HeaderTaskID      = "X-Task-Id"
)

// multipartMemory is the part of a multipart body kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// parseAnalysisRequest reads the multipart (or urlencoded) analysis form.
// Every failure wraps domain.ErrValidation and happens before any task exists.
func parseAnalysisRequest(w http.ResponseWriter, r *http.Request, maxFileBytes int64) (analysis.Request, error) {
	if maxFileBytes > 0 {
		// Room for the form fields and multipart framing on top of the file.
		r.Body = http.MaxBytesReader(w, r.Body, maxFileBytes+(1<<20))
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return analysis.Request{}, formError(err, maxFileBytes)
		}
		if err := r.ParseForm(); err != nil {
			return analysis.Request{}, formError(err, maxFileBytes)
		}
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	form := analyzeForm{URL: strings.TrimSpace(r.FormValue("url"))}
	if err := shared.ValidateRequest(&form); err != nil {
		return analysis.Request{}, fmt.Errorf("%w: %s", domain.ErrValidation, SanitizeValidationError(err))
	}

	input := domain.Input{URL: form.URL}
	if form.URL == "" {
		filename, data, err := readUpload(r, maxFileBytes)
		if err != nil {
			return analysis.Request{}, err
		}
		input.Filename = filename
		input.Data = data
	}
	if err := input.Validate(maxFileBytes); err != nil {
		return analysis.Request{}, err
	}

	return analysis.Request{
		Input: input,
		Options: domain.Options{
			Translate:        shared.FormBool(r, "translate", true),
			ExtractArtifacts: shared.FormBool(r, "extract_charts", true),
			AnalyzePaper:     shared.FormBool(r, "enable_paper_analysis", true),
		},
		ParserKey:   shared.Header(r, HeaderParserKey),
		AnalyzerKey: shared.Header(r, HeaderAnalyzerKey),
	}, nil
}

// readUpload returns the uploaded file, or empty values when none was sent.
func readUpload(r *http.Request, maxFileBytes int64) (string, []byte, error) {
	if r.MultipartForm == nil {
		return "", nil, nil
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, formError(err, maxFileBytes)
	}
	defer file.Close()

	reader := io.Reader(file)
	if maxFileBytes > 0 {
		reader = io.LimitReader(file, maxFileBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", nil, formError(err, maxFileBytes)
	}
	return header.Filename, data, nil
}

func formError(err error, maxFileBytes int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: file exceeds %d MB limit", domain.ErrValidation, maxFileBytes/(1024*1024))
	}
	return fmt.Errorf("%w: malformed form: %v", domain.ErrValidation, err)
}
