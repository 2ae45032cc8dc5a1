package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/auth"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/internal/rbac"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates a private in-memory SQLite database for one test.
// The shared cache lets every pooled connection see the same database, and a
// single open connection serializes transactions the way row locks would.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })

	return db
}

// CreateTestOrg creates a test organization
func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name: "Test Organization",
		Slug: "test-org-" + uuid.New().String()[:8],
		Plan: "free",
	}

	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreateTestUser creates an active user with password "testpassword123"
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestMembership makes user an active, verified member of org
func CreateTestMembership(t *testing.T, db *gorm.DB, user *models.User, org *models.Organization, role rbac.Role) *models.OrganizationMembership {
	t.Helper()

	m := &models.OrganizationMembership{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           role,
		IsActive:       true,
		IsVerified:     true,
	}

	if err := db.Create(m).Error; err != nil {
		t.Fatalf("failed to create test membership: %v", err)
	}

	return m
}

// SetTestContext writes the user's organization context directly, without
// checking membership, so tests can also build stale contexts.
func SetTestContext(t *testing.T, db *gorm.DB, user *models.User, org *models.Organization, role rbac.Role) *models.OrganizationContext {
	t.Helper()

	oc := &models.OrganizationContext{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           role,
	}

	if err := db.Save(oc).Error; err != nil {
		t.Fatalf("failed to set test organization context: %v", err)
	}

	return oc
}

// CreateTestMember creates a user with a membership in org and a context pointing at it
func CreateTestMember(t *testing.T, db *gorm.DB, org *models.Organization, role rbac.Role) *models.User {
	t.Helper()

	user := CreateTestUser(t, db)
	CreateTestMembership(t, db, user, org, role)
	SetTestContext(t, db, user, org, role)
	return user
}

// CreateTestInvitation creates a PENDING invitation expiring at expiresAt
func CreateTestInvitation(t *testing.T, db *gorm.DB, org *models.Organization, inviter *models.User, email string, role rbac.Role, expiresAt time.Time) *models.Invitation {
	t.Helper()

	inv := &models.Invitation{
		Token:           "tok-" + uuid.NewString(),
		Email:           email,
		Role:            role,
		OrganizationID:  org.ID,
		InvitedByUserID: inviter.ID,
		Status:          models.InvitationPending,
		ExpiresAt:       expiresAt.UTC(),
	}

	if err := db.Create(inv).Error; err != nil {
		t.Fatalf("failed to create test invitation: %v", err)
	}

	return inv
}

// CreateTestEquipment creates operational equipment in orgID
func CreateTestEquipment(t *testing.T, db *gorm.DB, orgID uuid.UUID, name string) *models.Equipment {
	t.Helper()

	eq := &models.Equipment{
		OrganizationID: orgID,
		Name:           name,
		SerialNumber:   "SN-" + uuid.NewString()[:8],
		Status:         models.EquipmentStatusOperational,
		Metadata:       "{}",
	}

	if err := db.Create(eq).Error; err != nil {
		t.Fatalf("failed to create test equipment: %v", err)
	}

	return eq
}

// CreateTestAlert creates an open alert on equipment
func CreateTestAlert(t *testing.T, db *gorm.DB, eq *models.Equipment, severity models.Severity) *models.Alert {
	t.Helper()

	alert := &models.Alert{
		OrganizationID: eq.OrganizationID,
		EquipmentID:    eq.ID,
		Title:          "Test Alert",
		Description:    "Test alert description",
		Severity:       severity,
		Status:         models.AlertStatusOpen,
	}

	if err := db.Create(alert).Error; err != nil {
		t.Fatalf("failed to create test alert: %v", err)
	}

	return alert
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Org        *models.Organization
	User       *models.User
	Token      string
}

// NewTestContext creates a DB, an org, and an ADMINISTRATOR of that org with
// a selected context and a session token
func NewTestContext(t *testing.T) *TestSetup {
	return NewTestContextWithRole(t, rbac.RoleAdministrator)
}

// NewTestContextWithRole is NewTestContext with the user's role chosen by the caller
func NewTestContextWithRole(t *testing.T, role rbac.Role) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	org := CreateTestOrg(t, db)
	user := CreateTestMember(t, db, org, role)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Org:        org,
		User:       user,
		Token:      token,
	}
}

// Member adds another user to the setup's organization and returns it with a token
func (ts *TestSetup) Member(t *testing.T, role rbac.Role) (*models.User, string) {
	t.Helper()
	user := CreateTestMember(t, ts.DB, ts.Org, role)
	return user, GenerateTestToken(t, ts.JWTService, user)
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
