package uploads

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-equip/internal/database"
	"github.com/hugh/go-equip/internal/database/models"
	"github.com/hugh/go-equip/pkg/crypto"
	"gorm.io/gorm"
)

// DefaultMaxSize caps a single upload body.
const DefaultMaxSize int64 = 25 << 20

var (
	ErrNotFound          = errors.New("upload not found")
	ErrEquipmentNotFound = errors.New("equipment not found")
	ErrTooLarge          = errors.New("upload too large")
	ErrEmpty             = errors.New("upload is empty")
)

type Service struct {
	db      *gorm.DB
	blobs   BlobStore
	enc     *crypto.Encryptor
	logger  *slog.Logger
	maxSize int64
}

func NewService(db *gorm.DB, blobs BlobStore, enc *crypto.Encryptor, logger *slog.Logger) *Service {
	return &Service{
		db:      db,
		blobs:   blobs,
		enc:     enc,
		logger:  logger,
		maxSize: DefaultMaxSize,
	}
}

// WithMaxSize returns a copy of the service with a different size cap.
func (s *Service) WithMaxSize(n int64) *Service {
	c := *s
	c.maxSize = n
	return &c
}

func (s *Service) MaxSize() int64 {
	return s.maxSize
}

type CreateInput struct {
	OrganizationID uuid.UUID
	EquipmentID    *uuid.UUID
	UploadedBy     uuid.UUID
	FileName       string
	ContentType    string
	Body           io.Reader
}

// Create encrypts the body, stores it and records the upload. The blob is
// removed again if the row cannot be written.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Upload, error) {
	if input.EquipmentID != nil {
		if err := s.checkEquipment(ctx, input.OrganizationID, *input.EquipmentID); err != nil {
			return nil, err
		}
	}

	// Sealed into memory first: the size checks run before the blob store sees
	// anything, and S3 needs the length up front. LimitReader bounds the buffer.
	hash := sha256.New()
	var sealed bytes.Buffer
	n, err := s.enc.EncryptStream(&sealed, io.TeeReader(io.LimitReader(input.Body, s.maxSize+1), hash))
	if err != nil {
		return nil, fmt.Errorf("encrypting upload: %w", err)
	}
	if n > s.maxSize {
		return nil, ErrTooLarge
	}
	if n == 0 {
		return nil, ErrEmpty
	}

	upload := models.Upload{
		OrganizationID: input.OrganizationID,
		EquipmentID:    input.EquipmentID,
		UploadedBy:     input.UploadedBy,
		FileName:       cleanFileName(input.FileName),
		ContentType:    input.ContentType,
		Size:           n,
		SHA256:         hex.EncodeToString(hash.Sum(nil)),
	}
	upload.ID = uuid.New()
	upload.StorageKey = input.OrganizationID.String() + "/" + upload.ID.String()
	if upload.ContentType == "" {
		upload.ContentType = "application/octet-stream"
	}

	if err := s.blobs.Put(ctx, upload.StorageKey, &sealed, int64(sealed.Len())); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(&upload).Error; err != nil {
		if delErr := s.blobs.Delete(ctx, upload.StorageKey); delErr != nil {
			s.logger.Warn("orphaned upload blob", "key", upload.StorageKey, "error", delErr)
		}
		return nil, database.Wrap("creating upload", err)
	}

	s.logger.Info("upload stored",
		"upload_id", upload.ID,
		"org_id", upload.OrganizationID,
		"size", upload.Size,
	)
	return &upload, nil
}

// List returns an organization's uploads, optionally only those attached to one piece of equipment.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, equipmentID *uuid.UUID) ([]models.Upload, error) {
	query := s.db.WithContext(ctx).Where("organization_id = ?", orgID)
	if equipmentID != nil {
		query = query.Where("equipment_id = ?", *equipmentID)
	}

	var uploads []models.Upload
	if err := query.Order("created_at DESC").Find(&uploads).Error; err != nil {
		return nil, database.Wrap("listing uploads", err)
	}
	return uploads, nil
}

func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*models.Upload, error) {
	var upload models.Upload
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&upload).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, database.Wrap("loading upload", err)
	}
	return &upload, nil
}

// Open returns the upload and a reader over its decrypted body. The caller closes it.
func (s *Service) Open(ctx context.Context, orgID, id uuid.UUID) (*models.Upload, io.ReadCloser, error) {
	upload, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, nil, err
	}

	blob, err := s.blobs.Get(ctx, upload.StorageKey)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			s.logger.Error("upload row without blob", "upload_id", upload.ID, "key", upload.StorageKey)
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	plain, err := s.enc.DecryptStream(blob)
	if err != nil {
		blob.Close()
		return nil, nil, fmt.Errorf("decrypting upload: %w", err)
	}

	return upload, struct {
		io.Reader
		io.Closer
	}{plain, blob}, nil
}

// Delete soft-deletes the row, then removes the blob. A blob that cannot be
// removed is logged; the upload is already gone for readers.
func (s *Service) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	upload, err := s.Get(ctx, orgID, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(upload).Error; err != nil {
		return database.Wrap("deleting upload", err)
	}

	if err := s.blobs.Delete(ctx, upload.StorageKey); err != nil {
		s.logger.Warn("failed to delete upload blob", "key", upload.StorageKey, "error", err)
	}
	return nil
}

func (s *Service) checkEquipment(ctx context.Context, orgID, equipmentID uuid.UUID) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Equipment{}).
		Where("id = ? AND organization_id = ?", equipmentID, orgID).
		Count(&count).Error
	if err != nil {
		return database.Wrap("checking equipment", err)
	}
	if count == 0 {
		return ErrEquipmentNotFound
	}
	return nil
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
