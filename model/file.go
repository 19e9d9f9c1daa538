package model

import "slices"

const (
	KindFolder = "folder"
	KindFile   = "file"
	KindImage  = "image"
)

var validKinds = []string{KindFolder, KindFile, KindImage}

// ValidKind reports whether k is one of folder, file or image
func ValidKind(k string) bool {
	return slices.Contains(validKinds, k)
}

type File struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"index;not null" json:"userId"`
	Name   string `gorm:"not null" json:"name"`

	// One of folder, file or image. Never changes after creation
	Kind string `gorm:"not null" json:"type"`

	// Empty string means the file sits at the root of the user's tree
	ParentID string `gorm:"index;default:''" json:"parentId"`
	IsPublic bool   `gorm:"default:false" json:"isPublic"`

	// Opaque key into the content store. Folders never have one and
	// it's hidden from responses so storage paths don't leak
	ContentKey string `json:"-"`
	MimeType   string `json:"mimeType,omitempty"`
	Size       int64  `json:"size"`

	// Unix nanoseconds. Listing order follows insertion order through it
	CreatedAt int64 `gorm:"not null;index" json:"createdAt"`
}
