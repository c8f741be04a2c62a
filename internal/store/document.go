// Package store persists whole JSON documents addressed by namespace and key.
package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/datatypes"
)

const maxKeyLength = 190

var (
	// ErrNotFound reports that no document is stored under the requested key.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidKey reports an empty or oversized namespace or key.
	ErrInvalidKey = errors.New("store: invalid document key")
)

// Document is one stored JSON blob.
type Document struct {
	Namespace        string         `gorm:"column:namespace;primaryKey;size:64;not null"`
	Key              string         `gorm:"column:doc_key;primaryKey;size:190;not null"`
	Payload          datatypes.JSON `gorm:"column:payload_json;not null"`
	UpdatedAtSeconds int64          `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Document) TableName() string {
	return "documents"
}

// Store is the persistence contract consumed by the services: whole-document
// load and save with no partial updates.
type Store interface {
	Load(ctx context.Context, namespace, key string) ([]byte, error)
	Save(ctx context.Context, namespace, key string, payload []byte) error
	Delete(ctx context.Context, namespace, key string) error
	Keys(ctx context.Context, namespace string) ([]string, error)
}

func validateKey(namespace, key string) error {
	if strings.TrimSpace(namespace) == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(namespace) > 64 || len(key) > maxKeyLength {
		return ErrInvalidKey
	}
	return nil
}
