// Package catalog implements the authorization-aware file catalog.
// All metadata reads and writes go through here so ownership and
// visibility rules live in exactly one place
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"filehub/files-api/internal/queue"
	"filehub/files-api/internal/storage"
	"filehub/files-api/model"

	"github.com/gabriel-vasile/mimetype"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// PageSize is the fixed number of records per listing page
const PageSize = 20

var (
	// ErrNotFound covers both a record that doesn't exist and one the
	// requester isn't allowed to see. Callers can't tell those apart
	// on purpose
	ErrNotFound = errors.New("file not found")

	// ErrInvalidParent means the parent is missing, not a folder, or
	// belongs to someone else
	ErrInvalidParent = errors.New("parent is not a folder owned by the requester")

	// ErrNotAFile means content was requested for a folder
	ErrNotAFile = errors.New("folders have no content")
)

type Catalog struct {
	db    *gorm.DB
	store storage.Store
	queue queue.Enqueuer
}

func New(db *gorm.DB, store storage.Store, q queue.Enqueuer) *Catalog {
	return &Catalog{
		db:    db,
		store: store,
		queue: q,
	}
}

// CreateFolder creates a folder record. Folders never hold content
func (c *Catalog) CreateFolder(ctx context.Context, ownerID, name, parentID string) (*model.File, error) {
	if err := c.validateParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}

	file := &model.File{
		UserID:    ownerID,
		Name:      name,
		Kind:      model.KindFolder,
		ParentID:  parentID,
		CreatedAt: time.Now().UnixNano(),
	}

	return c.persist(ctx, file)
}

// CreateFile stores data in the content store and then persists the
// record, in that order, so a record never references missing content.
// Images additionally get a thumbnail job enqueued. Enqueue failures
// don't roll anything back, thumbnails are best-effort
func (c *Catalog) CreateFile(ctx context.Context, ownerID, name, kind, parentID string, data []byte) (*model.File, error) {
	if err := c.validateParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}

	key, err := c.store.Write(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store content, %w", err)
	}

	file := &model.File{
		UserID:     ownerID,
		Name:       name,
		Kind:       kind,
		ParentID:   parentID,
		ContentKey: key,
		MimeType:   mimetype.Detect(data).String(),
		Size:       int64(len(data)),
		CreatedAt:  time.Now().UnixNano(),
	}

	file, err = c.persist(ctx, file)
	if err != nil {
		return nil, err
	}

	if kind == model.KindImage {
		err = c.queue.EnqueueThumbnail(ctx, queue.ThumbnailPayload{
			UserID: ownerID,
			FileID: file.ID,
		})
		if err != nil {
			zap.L().Warn("Failed to enqueue thumbnail job, upload kept",
				zap.String("file_id", file.ID),
				zap.Error(err))
		}
	}

	return file, nil
}

// Get returns a record if the requester owns it or it's public.
// Everything else looks like it doesn't exist
func (c *Catalog) Get(ctx context.Context, fileID, requesterID string) (*model.File, error) {
	var file model.File

	err := c.db.
		WithContext(ctx).
		Where("id = ?", fileID).
		First(&file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to fetch file, %w", err)
	}

	if file.UserID != requesterID && !file.IsPublic {
		return nil, ErrNotFound
	}

	return &file, nil
}

// List returns one page of the owner's records under parentID, in
// insertion order. Pages past the end are empty, never an error
func (c *Catalog) List(ctx context.Context, ownerID, parentID string, page int) ([]model.File, error) {
	if page < 0 {
		page = 0
	}

	files := []model.File{}

	err := c.db.
		WithContext(ctx).
		Where("user_id = ? AND parent_id = ?", ownerID, parentID).
		Order("created_at asc").
		Offset(page * PageSize).
		Limit(PageSize).
		Find(&files).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files, %w", err)
	}

	return files, nil
}

// SetPublic flips the visibility flag. Only the owner may do this and
// a non-owner gets the same answer as for a missing file
func (c *Catalog) SetPublic(ctx context.Context, fileID, requesterID string, public bool) (*model.File, error) {
	var file model.File

	err := c.db.
		WithContext(ctx).
		Where("id = ? AND user_id = ?", fileID, requesterID).
		First(&file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to fetch file, %w", err)
	}

	err = c.db.
		WithContext(ctx).
		Model(&file).
		Update("is_public", public).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to update file, %w", err)
	}

	file.IsPublic = public
	return &file, nil
}

// ReadContent streams the raw bytes of a file or image. Width picks a
// derived thumbnail instead of the original, 0 means the original.
// Authorization is the same as Get
func (c *Catalog) ReadContent(ctx context.Context, fileID, requesterID string, width int) (io.ReadCloser, *model.File, error) {
	file, err := c.Get(ctx, fileID, requesterID)
	if err != nil {
		return nil, nil, err
	}

	if file.Kind == model.KindFolder {
		return nil, nil, ErrNotAFile
	}

	key := file.ContentKey
	if width > 0 {
		key = storage.DeriveKey(key, width)
	}

	r, err := c.store.Read(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	return r, file, nil
}

// Counts returns the user and file totals for the stats endpoint
func (c *Catalog) Counts(ctx context.Context) (users, files int64, err error) {
	err = c.db.WithContext(ctx).Model(model.User{}).Count(&users).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count users, %w", err)
	}

	err = c.db.WithContext(ctx).Model(model.File{}).Count(&files).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count files, %w", err)
	}

	return users, files, nil
}

func (c *Catalog) validateParent(ctx context.Context, ownerID, parentID string) error {
	if parentID == "" {
		return nil
	}

	var parent model.File

	err := c.db.
		WithContext(ctx).
		Where("id = ?", parentID).
		First(&parent).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidParent
		}

		return fmt.Errorf("failed to fetch parent, %w", err)
	}

	if parent.Kind != model.KindFolder || parent.UserID != ownerID {
		return ErrInvalidParent
	}

	return nil
}

func (c *Catalog) persist(ctx context.Context, file *model.File) (*model.File, error) {
	id, err := gonanoid.Generate(charset, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate file ID, %w", err)
	}
	file.ID = id

	if err := c.db.WithContext(ctx).Create(file).Error; err != nil {
		return nil, fmt.Errorf("failed to save file record, %w", err)
	}

	return file, nil
}
