package output

import (
	"errors"
	"fmt"
	"log/slog"
)

// Factory errors
var (
	ErrInvalidBackendType = errors.New("invalid backend type")
)

// BackendFactory creates Backend instances based on configuration
type BackendFactory interface {
	CreateBackend(backendType string) (Backend, error)
	GetSupportedBackends() []string
	IsValidBackendType(backendType string) bool
}

// DefaultBackendFactory implements BackendFactory
type DefaultBackendFactory struct{}

// NewBackendFactory creates a new DefaultBackendFactory
func NewBackendFactory() *DefaultBackendFactory {
	return &DefaultBackendFactory{}
}

// CreateBackend creates a Backend instance based on the specified type.
// An empty string defaults to "auto", which currently selects malgo:
// it supports every encoding the sample model has, where oto does not.
func (f *DefaultBackendFactory) CreateBackend(backendType string) (Backend, error) {
	if backendType == "" {
		backendType = "auto"
	}

	slog.Debug("creating output backend", "type", backendType)

	switch backendType {
	case "auto", "malgo":
		return NewMalgoBackend(), nil
	case "oto":
		return NewOtoBackend(), nil
	default:
		slog.Error("invalid backend type requested", "type", backendType)
		return nil, fmt.Errorf("%w: %s", ErrInvalidBackendType, backendType)
	}
}

// GetSupportedBackends returns all supported backend type names
func (f *DefaultBackendFactory) GetSupportedBackends() []string {
	return []string{"auto", "malgo", "oto"}
}

// IsValidBackendType checks if a backend type is supported
func (f *DefaultBackendFactory) IsValidBackendType(backendType string) bool {
	if backendType == "" {
		return true
	}
	for _, supported := range f.GetSupportedBackends() {
		if backendType == supported {
			return true
		}
	}
	return false
}
