// Package handler implements the upload, processing and download HTTP
// endpoints of the reconciliation API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	authhandler "github.com/RonTitans/BillFlow/internal/domain/auth/handler"
	"github.com/RonTitans/BillFlow/internal/domain/billing/repository"
	"github.com/RonTitans/BillFlow/internal/domain/billing/service"
	"github.com/RonTitans/BillFlow/pkg/server"
	"github.com/RonTitans/BillFlow/pkg/storage"
)

// maxUploadBytes caps a multipart upload at 50MB.
const maxUploadBytes = 50 << 20

// BillingHandler serves the upload lifecycle endpoints.
type BillingHandler struct {
	svc    *service.UploadService
	store  storage.Store
	logger *slog.Logger
}

// NewBillingHandler constructs a new handler.
func NewBillingHandler(svc *service.UploadService, store storage.Store, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{svc: svc, store: store, logger: logger}
}

type fileResponse struct {
	ID               string           `json:"id"`
	OriginalFilename string           `json:"originalFilename"`
	StandardizedName string           `json:"standardizedName"`
	FileSize         int64            `json:"fileSize"`
	BillingMonth     *int             `json:"billingMonth"`
	BillingYear      *int             `json:"billingYear"`
	BillingPeriod    *string          `json:"billingPeriod"`
	MunicipalityName *string          `json:"municipalityName"`
	ProcessingStatus string           `json:"processingStatus"`
	ProcessingErrors *string          `json:"processingErrors"`
	CSVTotal         *decimal.Decimal `json:"csvTotal"`
	TSVTotal         *decimal.Decimal `json:"tsvTotal"`
	GapAmount        *decimal.Decimal `json:"gapAmount"`
	PerfectMatch     *bool            `json:"perfectMatch"`
	TotalRows        *int             `json:"totalRows"`
	IncludedRows     *int             `json:"includedRows"`
	HasExcel         bool             `json:"hasExcel"`
	HasTSV           bool             `json:"hasTsv"`
	UploadTime       string           `json:"uploadTime"`
	ProcessedTime    *string          `json:"processedTime"`
}

func toFileResponse(u *repository.Upload) fileResponse {
	resp := fileResponse{
		ID:               u.ID.String(),
		OriginalFilename: u.OriginalFilename,
		StandardizedName: u.StandardizedName,
		FileSize:         u.FileSize,
		BillingMonth:     u.BillingMonth,
		BillingYear:      u.BillingYear,
		BillingPeriod:    u.BillingPeriod,
		MunicipalityName: u.MunicipalityName,
		ProcessingStatus: string(u.Status),
		ProcessingErrors: u.ProcessingErrors,
		CSVTotal:         u.CSVTotal,
		TSVTotal:         u.TSVTotal,
		GapAmount:        u.GapAmount,
		PerfectMatch:     u.PerfectMatch,
		TotalRows:        u.TotalRows,
		IncludedRows:     u.IncludedRows,
		HasExcel:         u.ExcelPath != nil && *u.ExcelPath != "",
		HasTSV:           u.TSVPath != nil && *u.TSVPath != "",
		UploadTime:       u.UploadTime.UTC().Format(time.RFC3339),
	}
	if u.ProcessedTime != nil {
		t := u.ProcessedTime.UTC().Format(time.RFC3339)
		resp.ProcessedTime = &t
	}
	return resp
}

// Upload handles POST /api/upload: a multipart form with a single "file"
// part holding the invoice CSV.
func (h *BillingHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := authhandler.UserIDFromContext(r.Context())
	if !ok {
		server.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			server.Error(w, http.StatusRequestEntityTooLarge, "file exceeds the 50MB limit")
			return
		}
		server.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	filename := fixFilenameEncoding(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		server.Error(w, http.StatusBadRequest, "only CSV files are accepted")
		return
	}

	u, err := h.svc.Upload(r.Context(), userID, filename, file)
	if err != nil {
		var dup *service.DuplicatePeriodError
		if errors.As(err, &dup) {
			server.JSON(w, http.StatusConflict, map[string]any{
				"error":         "a completed upload already exists for this billing period",
				"billingPeriod": dup.BillingPeriod,
				"existingFile": map[string]string{
					"id":   dup.ExistingID.String(),
					"name": dup.ExistingName,
				},
			})
			return
		}
		h.logger.Error("upload failed", slog.Any("error", err))
		server.Error(w, http.StatusInternalServerError, "upload failed")
		return
	}

	server.JSON(w, http.StatusCreated, toFileResponse(u))
}

// ListFiles handles GET /api/files.
func (h *BillingHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := authhandler.UserIDFromContext(r.Context())
	if !ok {
		server.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	uploads, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("list files failed", slog.Any("error", err))
		server.Error(w, http.StatusInternalServerError, "could not list files")
		return
	}

	files := make([]fileResponse, 0, len(uploads))
	for _, u := range uploads {
		files = append(files, toFileResponse(u))
	}
	server.JSON(w, http.StatusOK, map[string]any{"files": files})
}

type processRequest struct {
	FileID string `json:"fileId"`
}

// Process handles POST /api/process: runs the conversion for one record.
func (h *BillingHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID, ok := authhandler.UserIDFromContext(r.Context())
	if !ok {
		server.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fileID, err := uuid.Parse(req.FileID)
	if err != nil {
		server.Error(w, http.StatusBadRequest, "invalid fileId")
		return
	}

	u, err := h.svc.Process(r.Context(), userID, fileID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			server.Error(w, http.StatusNotFound, "file not found")
		case errors.Is(err, repository.ErrNotProcessable):
			server.Error(w, http.StatusConflict, "file is already being processed")
		default:
			var procErr *service.ProcessingError
			if errors.As(err, &procErr) {
				server.JSON(w, http.StatusUnprocessableEntity, map[string]string{
					"error":  "processing failed",
					"detail": procErr.Detail,
				})
				return
			}
			h.logger.Error("processing failed", slog.String("fileID", fileID.String()), slog.Any("error", err))
			server.Error(w, http.StatusInternalServerError, "processing failed")
		}
		return
	}

	server.JSON(w, http.StatusOK, toFileResponse(u))
}

// DownloadExcel handles GET /api/download/excel?fileId=.
func (h *BillingHandler) DownloadExcel(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, func(u *repository.Upload) (*string, *string) {
		return u.ExcelPath, u.ProcessedFilename
	}, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// DownloadTSV handles GET /api/download/tsv?fileId=.
func (h *BillingHandler) DownloadTSV(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, func(u *repository.Upload) (*string, *string) {
		return u.TSVPath, u.TSVFilename
	}, "text/tab-separated-values")
}

func (h *BillingHandler) download(w http.ResponseWriter, r *http.Request, pick func(*repository.Upload) (*string, *string), contentType string) {
	userID, ok := authhandler.UserIDFromContext(r.Context())
	if !ok {
		server.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	fileID, err := uuid.Parse(r.URL.Query().Get("fileId"))
	if err != nil {
		server.Error(w, http.StatusBadRequest, "invalid fileId")
		return
	}

	u, err := h.svc.Get(r.Context(), userID, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			server.Error(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("download lookup failed", slog.Any("error", err))
		server.Error(w, http.StatusInternalServerError, "download failed")
		return
	}

	relPath, downloadName := pick(u)
	if relPath == nil || *relPath == "" {
		server.Error(w, http.StatusNotFound, "file has not been processed yet")
		return
	}

	f, err := h.store.Open(*relPath)
	if err != nil {
		server.Error(w, http.StatusNotFound, "artifact is missing from storage")
		return
	}
	defer f.Close()

	name := filepath.Base(*relPath)
	if downloadName != nil && *downloadName != "" {
		name = *downloadName
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''`+escapeRFC5987(name))
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("download interrupted", slog.String("fileID", fileID.String()), slog.Any("error", err))
	}
}

// DeleteFile handles DELETE /api/files/{fileID}.
func (h *BillingHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := authhandler.UserIDFromContext(r.Context())
	if !ok {
		server.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		server.Error(w, http.StatusBadRequest, "invalid file id")
		return
	}

	if err := h.svc.Delete(r.Context(), userID, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			server.Error(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("delete failed", slog.String("fileID", fileID.String()), slog.Any("error", err))
		server.Error(w, http.StatusInternalServerError, "delete failed")
		return
	}

	server.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// fixFilenameEncoding repairs Hebrew filenames that browsers send
// latin-1 mangled: when the name's code points all fit in a byte and
// those bytes form valid UTF-8 containing multibyte runes, the UTF-8
// reading is the real name.
func fixFilenameEncoding(name string) string {
	raw := make([]byte, 0, len(name))
	for _, r := range name {
		if r > 0xFF {
			return name
		}
		raw = append(raw, byte(r))
	}
	if utf8.Valid(raw) {
		return string(raw)
	}
	return name
}

// escapeRFC5987 percent-encodes a filename for Content-Disposition
// filename*, keeping unreserved ASCII as-is.
func escapeRFC5987(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0xF])
		}
	}
	return b.String()
}
