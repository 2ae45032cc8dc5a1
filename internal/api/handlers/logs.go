package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hugh/go-equip/internal/api/dto"
	"github.com/hugh/go-equip/internal/api/middleware"
	"github.com/hugh/go-equip/internal/api/validation"
	"github.com/hugh/go-equip/internal/database/models"
	"gorm.io/gorm"
)

type LogHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewLogHandler(db *gorm.DB, logger *slog.Logger) *LogHandler {
	return &LogHandler{db: db, logger: logger}
}

var validLogKinds = map[models.LogKind]bool{
	models.LogKindInspection: true,
	models.LogKindService:    true,
	models.LogKindRepair:     true,
	models.LogKindReading:    true,
	models.LogKindNote:       true,
}

type CreateLogRequest struct {
	Kind        string `json:"kind"`
	Summary     string `json:"summary"`
	Details     string `json:"details,omitempty"`
	Readings    string `json:"readings,omitempty"`
	PerformedAt int64  `json:"performed_at,omitempty"`
}

func (r CreateLogRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if !validLogKinds[models.LogKind(r.Kind)] {
		errors["kind"] = "Invalid log kind"
	}
	if strings.TrimSpace(r.Summary) == "" {
		errors["summary"] = "Summary is required"
	}
	if len(r.Summary) > 500 {
		errors["summary"] = "Summary must be at most 500 characters"
	}
	if r.Readings != "" && !validation.IsValidJSONObject(r.Readings) {
		errors["readings"] = "Readings must be a JSON object"
	}
	if r.PerformedAt != 0 && !validation.IsValidTimestamp(r.PerformedAt) {
		errors["performed_at"] = "Invalid performed_at"
	}
	return errors
}

// List handles GET /api/v1/equipment/{id}/logs
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.equipment(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.EquipmentLog{}).
		Where("equipment_id = ? AND organization_id = ?", eq.ID, eq.OrganizationID)

	if kind := r.URL.Query().Get("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.logger.Error("failed to count logs", "equipment_id", eq.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count logs"})
		return
	}

	logs := []models.EquipmentLog{}
	if err := query.
		Order("performed_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&logs).Error; err != nil {
		h.logger.Error("failed to list logs", "equipment_id", eq.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list logs"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(logs, total, pagination))
}

// Create handles POST /api/v1/equipment/{id}/logs
// A service entry also advances the equipment's last-serviced time.
func (h *LogHandler) Create(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.equipment(w, r)
	if !ok {
		return
	}

	var req CreateLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	performedAt := req.PerformedAt
	if performedAt == 0 {
		performedAt = time.Now().Unix()
	}
	readings := req.Readings
	if readings == "" {
		readings = "{}"
	}

	entry := models.EquipmentLog{
		OrganizationID: eq.OrganizationID,
		EquipmentID:    eq.ID,
		AuthorID:       middleware.GetUserID(r.Context()),
		Kind:           models.LogKind(req.Kind),
		Summary:        validation.SanitizeString(strings.TrimSpace(req.Summary)),
		Details:        validation.SanitizeString(req.Details),
		Readings:       readings,
		PerformedAt:    performedAt,
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if entry.Kind == models.LogKindService && performedAt > eq.LastServicedAt {
			return tx.Model(&models.Equipment{}).
				Where("id = ?", eq.ID).
				Update("last_serviced_at", performedAt).Error
		}
		return nil
	})
	if err != nil {
		h.logger.Error("failed to create log", "equipment_id", eq.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create log"})
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (h *LogHandler) equipment(w http.ResponseWriter, r *http.Request) (*models.Equipment, bool) {
	eq, err := findEquipment(h.db.WithContext(r.Context()), w, r)
	if err != nil {
		if err != errResponseWritten {
			h.logger.Error("failed to load equipment", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get equipment"})
		}
		return nil, false
	}
	return eq, true
}
