package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/api/dto"
	"github.com/hugh/go-equip/internal/database/models"
)

func benchEquipment(i int) *models.Equipment {
	eq := &models.Equipment{
		OrganizationID:    uuid.New(),
		Name:              "Forklift " + string(rune('A'+i%26)),
		SerialNumber:      "FL-" + uuid.NewString()[:8],
		Manufacturer:      "Toyota",
		Location:          "Warehouse 3",
		Status:            models.EquipmentStatusOperational,
		InstalledAt:       time.Now().Add(-365 * 24 * time.Hour).Unix(),
		LastServicedAt:    time.Now().Add(-20 * 24 * time.Hour).Unix(),
		ServiceIntervalDs: 30,
		Metadata:          `{"capacity_kg":2500,"fuel":"lpg"}`,
	}
	eq.ID = uuid.New()
	eq.CreatedAt = time.Now()
	eq.UpdatedAt = time.Now()
	return eq
}

// BenchmarkJSONSerialization benchmarks JSON encoding of common response types
func BenchmarkJSONSerialization(b *testing.B) {
	b.Run("ErrorResponse", func(b *testing.B) {
		resp := dto.ErrorResponse{
			Error: "Validation failed",
			Details: map[string]string{
				"name":   "Name is required",
				"status": "Invalid status",
			},
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("SingleEquipmentResponse", func(b *testing.B) {
		resp := equipmentToResponse(benchEquipment(0), time.Now())
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("PaginatedEquipmentResponse", func(b *testing.B) {
		now := time.Now()
		items := make([]EquipmentResponse, 20)
		for i := range items {
			items[i] = equipmentToResponse(benchEquipment(i), now)
		}
		resp := dto.PaginatedResponse{
			Data:       items,
			Total:      100,
			Page:       1,
			PerPage:    20,
			TotalPages: 5,
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("InvitationDTO", func(b *testing.B) {
		inv := &models.Invitation{
			Email:           "tech@example.com",
			Role:            "TECHNICIAN",
			OrganizationID:  uuid.New(),
			InvitedByUserID: uuid.New(),
			Status:          models.InvitationPending,
			ExpiresAt:       time.Now().Add(7 * 24 * time.Hour),
		}
		inv.ID = uuid.New()
		resp := dto.NewInvitationDTO(inv)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})
}

// BenchmarkRequestParsing benchmarks JSON decoding of common request types
func BenchmarkRequestParsing(b *testing.B) {
	b.Run("LoginRequest", func(b *testing.B) {
		jsonData := []byte(`{"email":"user@example.com","password":"securepassword123"}`)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.LoginRequest
			_ = json.Unmarshal(jsonData, &req)
		}
	})

	b.Run("EquipmentRequestWithDecoder", func(b *testing.B) {
		jsonData := `{"name":"Compressor","serial_number":"AC-22","status":"maintenance","metadata":"{\"psi\":120}"}`
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req EquipmentRequest
			_ = json.NewDecoder(strings.NewReader(jsonData)).Decode(&req)
		}
	})
}

// BenchmarkRequestValidation benchmarks request validation
func BenchmarkRequestValidation(b *testing.B) {
	name, serial, status, metadata := "Compressor", "AC-22", "maintenance", `{"psi":120}`

	b.Run("EquipmentRequestValid", func(b *testing.B) {
		req := EquipmentRequest{Name: &name, SerialNumber: &serial, Status: &status, Metadata: &metadata}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate(true)
		}
	})

	b.Run("CreateLogRequest", func(b *testing.B) {
		req := CreateLogRequest{Kind: "reading", Summary: "Hour meter", Readings: `{"hours":1520}`}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})

	b.Run("RegisterRequestInvalid", func(b *testing.B) {
		req := dto.RegisterRequest{
			Email:    "invalid-email",
			Password: "short",
			OrgName:  strings.Repeat("x", 200),
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})
}

// BenchmarkWriteJSON benchmarks the writeJSON helper function
func BenchmarkWriteJSON(b *testing.B) {
	b.Run("SmallResponse", func(b *testing.B) {
		resp := dto.SuccessResponse{Message: "OK"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			w := httptest.NewRecorder()
			writeJSON(w, http.StatusOK, resp)
		}
	})

	b.Run("LargeResponse", func(b *testing.B) {
		now := time.Now()
		items := make([]EquipmentResponse, 50)
		for i := range items {
			items[i] = equipmentToResponse(benchEquipment(i), now)
		}
		resp := dto.NewPaginatedResponse(items, 500, dto.PaginationParams{Page: 1, PerPage: 50})
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			w := httptest.NewRecorder()
			writeJSON(w, http.StatusOK, resp)
		}
	})
}
