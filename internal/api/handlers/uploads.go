package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/api/dto"
	"github.com/hugh/go-equip/internal/api/middleware"
	"github.com/hugh/go-equip/internal/uploads"
)

// multipartOverhead leaves room for form boundaries and headers on top of the file size cap.
const multipartOverhead = 1 << 20

type UploadHandler struct {
	uploads *uploads.Service
	logger  *slog.Logger
}

func NewUploadHandler(svc *uploads.Service, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploads: svc, logger: logger}
}

// Create handles POST /api/v1/uploads (multipart, field "file", optional "equipment_id")
func (h *UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxSize()+multipartOverhead)
	reader, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Expected multipart form"})
		return
	}

	var equipmentID *uuid.UUID
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeUploadReadError(w, err)
			return
		}

		switch part.FormName() {
		case "equipment_id":
			raw, err := io.ReadAll(io.LimitReader(part, 64))
			if err != nil {
				writeUploadReadError(w, err)
				return
			}
			if len(raw) == 0 {
				continue
			}
			id, err := uuid.Parse(string(raw))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid equipment ID"})
				return
			}
			equipmentID = &id
		case "file":
			// The file part must come last; fields after it are ignored.
			upload, err := h.uploads.Create(r.Context(), uploads.CreateInput{
				OrganizationID: orgID,
				EquipmentID:    equipmentID,
				UploadedBy:     middleware.GetUserID(r.Context()),
				FileName:       part.FileName(),
				ContentType:    part.Header.Get("Content-Type"),
				Body:           part,
			})
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					err = uploads.ErrTooLarge
				}
				writeServiceError(w, h.logger, err, "Failed to store upload")
				return
			}
			writeJSON(w, http.StatusCreated, upload)
			return
		}
	}

	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Missing file"})
}

// List handles GET /api/v1/uploads
func (h *UploadHandler) List(w http.ResponseWriter, r *http.Request) {
	equipmentID, ok := parseEquipmentFilter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid equipment ID"})
		return
	}

	list, err := h.uploads.List(r.Context(), middleware.GetOrganizationID(r.Context()), equipmentID)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to list uploads")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/uploads/{id}
func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid upload ID")
	if !ok {
		return
	}

	upload, err := h.uploads.Get(r.Context(), middleware.GetOrganizationID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to get upload")
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

// Download handles GET /api/v1/uploads/{id}/content
func (h *UploadHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid upload ID")
	if !ok {
		return
	}

	upload, body, err := h.uploads.Open(r.Context(), middleware.GetOrganizationID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to open upload")
		return
	}
	defer body.Close()

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(upload.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": upload.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		// Headers are out; all we can do is log
		h.logger.Error("failed to stream upload", "upload_id", upload.ID, "error", err)
	}
}

// Delete handles DELETE /api/v1/uploads/{id}
func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id", "Invalid upload ID")
	if !ok {
		return
	}

	if err := h.uploads.Delete(r.Context(), middleware.GetOrganizationID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "Failed to delete upload")
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Upload deleted"})
}

func writeUploadReadError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "Upload too large"})
		return
	}
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Malformed multipart body"})
}
