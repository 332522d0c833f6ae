package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/xenking/goods-catalog/internal/domain/product"
)

// Compile-time check ensuring Handler can be mounted on a mux.
var _ http.Handler = (*Handler)(nil)

// DefaultMaxBodyBytes bounds request bodies when HandlerConfig leaves it unset.
// Bodies carry base64 images, so the limit is generous.
const DefaultMaxBodyBytes = 10 << 20

// ImageStore persists product images.
type ImageStore interface {
	Save(ctx context.Context, id, dataURI string) (string, error)
	Open(name string) (*os.File, error)
	RemoveByID(id string) ([]string, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// SniffContentType serves images with a content type derived from their
	// extension. When false every image is served as image/png.
	SniffContentType bool
	// MaxBodyBytes limits the size of create and update bodies.
	MaxBodyBytes int64
}

// Handler serves the goods REST API, delegating storage to the injected
// repository and image store.
type Handler struct {
	goods  product.Repository
	images ImageStore

	sniffContentType bool
	maxBodyBytes     int64
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(cfg HandlerConfig, goods product.Repository, images ImageStore) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		goods:            goods,
		images:           images,
		sniffContentType: cfg.SniffContentType,
		maxBodyBytes:     cfg.MaxBodyBytes,
	}
}
