package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/api/dto"
	"github.com/hugh/go-equip/internal/api/middleware"
	"github.com/hugh/go-equip/internal/api/validation"
	"github.com/hugh/go-equip/internal/database/models"
	"gorm.io/gorm"
)

type EquipmentHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewEquipmentHandler(db *gorm.DB, logger *slog.Logger) *EquipmentHandler {
	return &EquipmentHandler{db: db, logger: logger}
}

var validEquipmentStatuses = map[models.EquipmentStatus]bool{
	models.EquipmentStatusOperational: true,
	models.EquipmentStatusMaintenance: true,
	models.EquipmentStatusDown:        true,
	models.EquipmentStatusRetired:     true,
}

// EquipmentRequest is used for both create and update. On update only the
// fields present in the body change.
type EquipmentRequest struct {
	Name              *string `json:"name"`
	SerialNumber      *string `json:"serial_number,omitempty"`
	Model             *string `json:"model,omitempty"`
	Manufacturer      *string `json:"manufacturer,omitempty"`
	Location          *string `json:"location,omitempty"`
	Status            *string `json:"status,omitempty"`
	InstalledAt       *int64  `json:"installed_at,omitempty"`
	ServiceIntervalDs *int    `json:"service_interval_days,omitempty"`
	Metadata          *string `json:"metadata,omitempty"`
}

func (r EquipmentRequest) Validate(creating bool) map[string]string {
	errors := make(map[string]string)
	if (creating && r.Name == nil) || (r.Name != nil && strings.TrimSpace(*r.Name) == "") {
		errors["name"] = "Name is required"
	}
	if r.Name != nil && len(*r.Name) > 200 {
		errors["name"] = "Name must be at most 200 characters"
	}
	if r.SerialNumber != nil && !validation.IsValidSerialNumber(*r.SerialNumber) {
		errors["serial_number"] = "Invalid serial number"
	}
	if r.Status != nil && !validEquipmentStatuses[models.EquipmentStatus(*r.Status)] {
		errors["status"] = "Invalid status"
	}
	if r.InstalledAt != nil && *r.InstalledAt != 0 && !validation.IsValidTimestamp(*r.InstalledAt) {
		errors["installed_at"] = "Invalid installation time"
	}
	if r.ServiceIntervalDs != nil && *r.ServiceIntervalDs < 0 {
		errors["service_interval_days"] = "Service interval cannot be negative"
	}
	if r.Metadata != nil && !validation.IsValidJSONObject(*r.Metadata) {
		errors["metadata"] = "Metadata must be a JSON object"
	}
	return errors
}

// EquipmentResponse represents equipment in API responses
type EquipmentResponse struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	SerialNumber      string `json:"serial_number,omitempty"`
	Model             string `json:"model,omitempty"`
	Manufacturer      string `json:"manufacturer,omitempty"`
	Location          string `json:"location,omitempty"`
	Status            string `json:"status"`
	InstalledAt       int64  `json:"installed_at,omitempty"`
	LastServicedAt    int64  `json:"last_serviced_at,omitempty"`
	ServiceIntervalDs int    `json:"service_interval_days"`
	ServiceDue        bool   `json:"service_due"`
	Metadata          string `json:"metadata,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

func equipmentToResponse(eq *models.Equipment, now time.Time) EquipmentResponse {
	resp := EquipmentResponse{
		ID:                eq.ID.String(),
		Name:              eq.Name,
		SerialNumber:      eq.SerialNumber,
		Model:             eq.Model,
		Manufacturer:      eq.Manufacturer,
		Location:          eq.Location,
		Status:            string(eq.Status),
		InstalledAt:       eq.InstalledAt,
		LastServicedAt:    eq.LastServicedAt,
		ServiceIntervalDs: eq.ServiceIntervalDs,
		Metadata:          eq.Metadata,
		CreatedAt:         eq.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         eq.UpdatedAt.Format(time.RFC3339),
	}
	resp.ServiceDue = serviceDue(eq, now)
	return resp
}

// serviceDue reports whether the service interval has elapsed since the last
// service (or installation when never serviced).
func serviceDue(eq *models.Equipment, now time.Time) bool {
	if eq.ServiceIntervalDs <= 0 || eq.Status == models.EquipmentStatusRetired {
		return false
	}
	last := eq.LastServicedAt
	if last == 0 {
		last = eq.InstalledAt
	}
	if last == 0 {
		return true
	}
	return now.Unix() >= last+int64(eq.ServiceIntervalDs)*86400
}

// List handles GET /api/v1/equipment
func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	// Parse pagination
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	// Parse filters
	status := r.URL.Query().Get("status")
	location := r.URL.Query().Get("location")
	search := strings.TrimSpace(r.URL.Query().Get("q"))

	query := h.db.WithContext(r.Context()).Model(&models.Equipment{}).Where("organization_id = ?", orgID)

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if location != "" {
		query = query.Where("location = ?", location)
	}
	if search != "" {
		like := "%" + escapeLike(strings.ToLower(search)) + "%"
		query = query.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(serial_number) LIKE ? ESCAPE '\')`, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.logger.Error("failed to count equipment", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count equipment"})
		return
	}

	var equipment []models.Equipment
	if err := query.
		Order("name ASC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&equipment).Error; err != nil {
		h.logger.Error("failed to list equipment", "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list equipment"})
		return
	}

	now := time.Now()
	response := make([]EquipmentResponse, len(equipment))
	for i := range equipment {
		response[i] = equipmentToResponse(&equipment[i], now)
	}

	writeJSON(w, http.StatusOK, dto.NewPaginatedResponse(response, total, pagination))
}

// Create handles POST /api/v1/equipment
func (h *EquipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	var req EquipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(true); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	eq := models.Equipment{
		OrganizationID: orgID,
		Status:         models.EquipmentStatusOperational,
		Metadata:       "{}",
	}
	applyEquipmentRequest(&eq, req)

	if err := h.db.WithContext(r.Context()).Create(&eq).Error; err != nil {
		h.logger.Error("failed to create equipment", "org_id", orgID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create equipment"})
		return
	}

	writeJSON(w, http.StatusCreated, equipmentToResponse(&eq, time.Now()))
}

// Get handles GET /api/v1/equipment/{id}
func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, equipmentToResponse(eq, time.Now()))
}

// Update handles PUT /api/v1/equipment/{id}
func (h *EquipmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	eq, ok := h.load(w, r)
	if !ok {
		return
	}

	var req EquipmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errors := req.Validate(false); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	applyEquipmentRequest(eq, req)
	if err := h.db.WithContext(r.Context()).Save(eq).Error; err != nil {
		h.logger.Error("failed to update equipment", "equipment_id", eq.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update equipment"})
		return
	}

	writeJSON(w, http.StatusOK, equipmentToResponse(eq, time.Now()))
}

// Delete handles DELETE /api/v1/equipment/{id}
func (h *EquipmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())
	id, ok := parseIDParam(w, r, "id", "Invalid equipment ID")
	if !ok {
		return
	}

	// Soft delete; logs, alerts and uploads stay for audit
	result := h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, orgID).
		Delete(&models.Equipment{})

	if result.Error != nil {
		h.logger.Error("failed to delete equipment", "equipment_id", id, "error", result.Error)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete equipment"})
		return
	}

	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Equipment not found"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Equipment deleted"})
}

// load fetches the {id} equipment scoped to the request's organization and
// writes the error response itself when it cannot.
func (h *EquipmentHandler) load(w http.ResponseWriter, r *http.Request) (*models.Equipment, bool) {
	eq, err := findEquipment(h.db.WithContext(r.Context()), w, r)
	if err != nil {
		if !errors.Is(err, errResponseWritten) {
			h.logger.Error("failed to load equipment", "error", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get equipment"})
		}
		return nil, false
	}
	return eq, true
}

var errResponseWritten = errors.New("response written")

// findEquipment resolves the {id} URL param within the caller's organization.
// Client errors are answered here and reported as errResponseWritten.
func findEquipment(db *gorm.DB, w http.ResponseWriter, r *http.Request) (*models.Equipment, error) {
	id, ok := parseIDParam(w, r, "id", "Invalid equipment ID")
	if !ok {
		return nil, errResponseWritten
	}

	var eq models.Equipment
	err := db.Where("id = ? AND organization_id = ?", id, middleware.GetOrganizationID(r.Context())).First(&eq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Equipment not found"})
		return nil, errResponseWritten
	}
	if err != nil {
		return nil, err
	}
	return &eq, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern using '\' as the escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func applyEquipmentRequest(eq *models.Equipment, req EquipmentRequest) {
	if req.Name != nil {
		eq.Name = strings.TrimSpace(*req.Name)
	}
	if req.SerialNumber != nil {
		eq.SerialNumber = *req.SerialNumber
	}
	if req.Model != nil {
		eq.Model = *req.Model
	}
	if req.Manufacturer != nil {
		eq.Manufacturer = *req.Manufacturer
	}
	if req.Location != nil {
		eq.Location = *req.Location
	}
	if req.Status != nil {
		eq.Status = models.EquipmentStatus(*req.Status)
	}
	if req.InstalledAt != nil {
		eq.InstalledAt = *req.InstalledAt
	}
	if req.ServiceIntervalDs != nil {
		eq.ServiceIntervalDs = *req.ServiceIntervalDs
	}
	if req.Metadata != nil && *req.Metadata != "" {
		eq.Metadata = *req.Metadata
	}
}

// parseEquipmentFilter reads an optional equipment_id query parameter.
func parseEquipmentFilter(r *http.Request) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get("equipment_id")
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}
