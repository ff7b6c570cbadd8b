package port

import "context"

// DocumentStorage archives generated documents per tenant
type DocumentStorage interface {
	Save(ctx context.Context, tenantID, path string, content []byte) error
	Read(ctx context.Context, tenantID, path string) ([]byte, error)
	Exists(ctx context.Context, tenantID, path string) bool
}
