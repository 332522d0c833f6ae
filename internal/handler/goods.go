package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/goods-catalog/internal/domain/product"
	"github.com/xenking/goods-catalog/internal/imagestore"
)

// listGoods returns the catalog, optionally filtered by the search query
// parameter and paginated by the page query parameter.
func (h *Handler) listGoods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	search := query.Get("search")

	page := 0
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeMessage(w, http.StatusBadRequest, MessageInvalidRequest)
			return
		}
		page = n
	}

	var (
		goods []product.Product
		err   error
	)
	switch {
	case search != "" && page > 0:
		goods, err = h.goods.ListBySearchAndPage(ctx, search, page)
	case search != "":
		goods, err = h.goods.ListBySearch(ctx, search)
	case page > 0:
		goods, err = h.goods.ListByPage(ctx, page)
	default:
		goods, err = h.goods.List(ctx)
	}
	if err != nil {
		fail(w, r, "list goods", err)
		return
	}

	writeGoods(w, goods)
}

// getGoods returns a single product or 404.
func (h *Handler) getGoods(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.goods.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, MessageNotFound)
			return
		}
		fail(w, r, "get goods", err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}

// createGoods stores the image from the payload, if any, then inserts the
// product. The two steps are not atomic.
func (h *Handler) createGoods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, err := h.readInput(w, r)
	if err != nil {
		decodeFailed(w, r, err)
		return
	}
	p, err := in.Product()
	if err != nil {
		writeMessage(w, http.StatusBadRequest, MessageInvalidRequest)
		return
	}

	// A taken id must not reach the image store, or the existing product's
	// image would be overwritten.
	switch _, err := h.goods.GetByID(ctx, p.ID); {
	case err == nil:
		fail(w, r, "insert goods", errors.Wrapf(product.ErrExists, "id %q", p.ID))
		return
	case !errors.Is(err, product.ErrNotFound):
		fail(w, r, "get goods", err)
		return
	}

	if in.Image != "" {
		path, err := h.saveImage(ctx, p.ID, in.Image)
		if err != nil {
			h.imageFailed(w, r, err)
			return
		}
		p.Image = path
	}

	if err := h.goods.Insert(ctx, p); err != nil {
		fail(w, r, "insert goods", err)
		return
	}

	writeMessage(w, http.StatusOK, MessageAdded)
}

// updateGoods applies a partial update and answers with the stored product.
// The image is only replaced when the payload carries a new data URI.
func (h *Handler) updateGoods(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	if _, err := h.goods.GetByID(ctx, id); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeMessage(w, http.StatusBadRequest, MessageInvalidRequest)
			return
		}
		fail(w, r, "get goods", err)
		return
	}

	in, err := h.readInput(w, r)
	if err != nil {
		decodeFailed(w, r, err)
		return
	}

	patch := in.Patch()
	if in.Image != "" {
		path, err := h.saveImage(ctx, id, in.Image)
		if err != nil {
			h.imageFailed(w, r, err)
			return
		}
		if path != "" {
			patch.Image = &path
		}
	}

	if err := h.goods.UpdateByID(ctx, id, patch); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeMessage(w, http.StatusBadRequest, MessageInvalidRequest)
			return
		}
		fail(w, r, "update goods", err)
		return
	}

	p, err := h.goods.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeMessage(w, http.StatusBadRequest, MessageInvalidRequest)
			return
		}
		fail(w, r, "get goods", err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}

// deleteGoods removes the product and then, best effort, its image files.
func (h *Handler) deleteGoods(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.goods.DeleteByID(r.Context(), id); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeMessage(w, http.StatusBadRequest, MessageInvalidRequest)
			return
		}
		fail(w, r, "delete goods", err)
		return
	}

	lg := zctx.From(r.Context())
	removed, err := h.images.RemoveByID(id)
	switch {
	case err != nil:
		lg.Warn("Failed to remove product image", zap.String("id", id), zap.Error(err))
	case len(removed) == 0:
		lg.Debug("Product has no image", zap.String("id", id))
	default:
		lg.Debug("Removed product image", zap.String("id", id), zap.Strings("files", removed))
	}

	writeMessage(w, http.StatusOK, MessageDeleted)
}

// readInput reads the whole request body and decodes it as a product.
func (h *Handler) readInput(w http.ResponseWriter, r *http.Request) (*product.Input, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return product.DecodeInput(body)
}

// decodeFailed answers 400 for out of range values and 500 for malformed
// bodies.
func decodeFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, product.ErrInvalidRequest) {
		writeMessage(w, http.StatusBadRequest, MessageInvalidRequest)
		return
	}
	fail(w, r, "decode goods", err)
}

// saveImage stores a data URI image under id. Values that are not a
// supported data URI yield an empty path and no error.
func (h *Handler) saveImage(ctx context.Context, id, value string) (string, error) {
	path, err := h.images.Save(ctx, id, value)
	if errors.Is(err, imagestore.ErrUnsupported) {
		return "", nil
	}
	return path, err
}

func (h *Handler) imageFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, imagestore.ErrInvalidName) {
		writeMessage(w, http.StatusBadRequest, MessageInvalidRequest)
		return
	}
	fail(w, r, "save image", err)
}
