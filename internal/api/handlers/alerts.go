package handlers

import (
	"encoding/json"
	"errors"
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

type AlertHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAlertHandler(db *gorm.DB, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{db: db, logger: logger}
}

var validSeverities = map[models.Severity]bool{
	models.SeverityInfo:     true,
	models.SeverityLow:      true,
	models.SeverityMedium:   true,
	models.SeverityHigh:     true,
	models.SeverityCritical: true,
}

type CreateAlertRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity"`
}

func (r CreateAlertRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Title) == "" {
		errors["title"] = "Title is required"
	}
	if !validSeverities[models.Severity(r.Severity)] {
		errors["severity"] = "Invalid severity"
	}
	return errors
}

type ResolveAlertRequest struct {
	Resolution string `json:"resolution"`
}

// List handles GET /api/v1/alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	equipmentID, ok := parseEquipmentFilter(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid equipment ID"})
		return
	}

	query := h.db.WithContext(r.Context()).Model(&models.Alert{}).Where("organization_id = ?", orgID)

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if severity := r.URL.Query().Get("severity"); severity != "" {
		query = query.Where("severity = ?", severity)
	}
	if equipmentID != nil {
		query = query.Where("equipment_id = ?", *equipmentID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.logger.Error("failed to count alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count alerts"})
		return
	}

	alerts := []models.Alert{}
	if err := query.
		Preload("Equipment").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&alerts).Error; err != nil {
		h.logger.Error("failed to list alerts", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list alerts"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(alerts, total, pagination))
}

// Create handles POST /api/v1/equipment/{id}/alerts
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	eq, err := findEquipment(h.db.WithContext(r.Context()), w, r)
	if err != nil {
		if !errors.Is(err, errResponseWritten) {
			h.logger.Error("failed to load equipment", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get equipment"})
		}
		return
	}

	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	alert := models.Alert{
		OrganizationID: eq.OrganizationID,
		EquipmentID:    eq.ID,
		Title:          validation.TruncateString(validation.SanitizeString(strings.TrimSpace(req.Title)), 200),
		Description:    validation.SanitizeString(req.Description),
		Severity:       models.Severity(req.Severity),
		Status:         models.AlertStatusOpen,
		RaisedBy:       middleware.GetUserID(r.Context()),
	}

	if err := h.db.WithContext(r.Context()).Create(&alert).Error; err != nil {
		h.logger.Error("failed to create alert", "equipment_id", eq.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create alert"})
		return
	}

	if alert.Severity == models.SeverityCritical {
		h.logger.Warn("critical alert raised", "alert_id", alert.ID, "equipment_id", eq.ID, "org_id", eq.OrganizationID)
	}

	writeJSON(w, http.StatusCreated, alert)
}

// Acknowledge handles POST /api/v1/alerts/{id}/acknowledge
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.AlertStatusAcknowledged, func(a *models.Alert) map[string]interface{} {
		return map[string]interface{}{"status": models.AlertStatusAcknowledged}
	})
}

// Resolve handles POST /api/v1/alerts/{id}/resolve
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveAlertRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
			return
		}
	}

	userID := middleware.GetUserID(r.Context())
	h.transition(w, r, models.AlertStatusResolved, func(a *models.Alert) map[string]interface{} {
		return map[string]interface{}{
			"status":      models.AlertStatusResolved,
			"resolved_at": time.Now().Unix(),
			"resolved_by": userID,
			"resolution":  req.Resolution,
		}
	})
}

// transition moves an unresolved alert to the target status. Resolved alerts
// are final.
func (h *AlertHandler) transition(w http.ResponseWriter, r *http.Request, target models.AlertStatus, updates func(*models.Alert) map[string]interface{}) {
	orgID := middleware.GetOrganizationID(r.Context())
	id, ok := parseIDParam(w, r, "id", "Invalid alert ID")
	if !ok {
		return
	}

	db := h.db.WithContext(r.Context())

	var alert models.Alert
	if err := db.Where("id = ? AND organization_id = ?", id, orgID).First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Alert not found"})
			return
		}
		h.logger.Error("failed to get alert", "alert_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get alert"})
		return
	}

	if alert.Status == models.AlertStatusResolved || alert.Status == target {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Alert is already " + string(alert.Status)})
		return
	}

	// Conditional on the status we read so concurrent transitions cannot both win
	result := db.Model(&models.Alert{}).
		Where("id = ? AND status = ?", alert.ID, alert.Status).
		Updates(updates(&alert))
	if result.Error != nil {
		h.logger.Error("failed to update alert", "alert_id", id, "error", result.Error)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update alert"})
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Alert was modified concurrently"})
		return
	}

	if err := db.First(&alert, "id = ?", alert.ID).Error; err != nil {
		h.logger.Error("failed to reload alert", "alert_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get alert"})
		return
	}

	writeJSON(w, http.StatusOK, alert)
}
