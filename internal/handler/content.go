package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/model"
	"github.com/kindfund/kindfund/internal/policy"
)

// Resource is a routable collection: the server asks it for the handler of
// each operation the access policy exposes.
type Resource interface {
	Name() string
	Handler(op policy.Operation) http.HandlerFunc
}

// Hooks run inside the store transaction of a write. Returning an error
// aborts the write; use errorf to choose the HTTP status.
type Hooks[PT model.Document] struct {
	BeforeCreate func(ctx context.Context, tx *config.Tx, doc PT) error
	BeforeUpdate func(ctx context.Context, tx *config.Tx, old, updated PT) error
	BeforeDelete func(ctx context.Context, tx *config.Tx, old PT) error
	// AfterCreate runs once the transaction has committed.
	AfterCreate func(doc PT)
}

// ContentHandler serves CRUD for one document collection. T is the document
// struct and PT its pointer type.
type ContentHandler[T any, PT interface {
	*T
	model.Document
}] struct {
	collection string
	store      *config.Store
	logger     *slog.Logger
	hooks      Hooks[PT]
}

// NewContentHandler creates a handler for collection.
func NewContentHandler[T any, PT interface {
	*T
	model.Document
}](collection string, store *config.Store, logger *slog.Logger, hooks Hooks[PT]) *ContentHandler[T, PT] {
	return &ContentHandler[T, PT]{
		collection: collection,
		store:      store,
		logger:     orDiscard(logger),
		hooks:      hooks,
	}
}

// Name returns the collection name.
func (h *ContentHandler[T, PT]) Name() string { return h.collection }

// Handler returns the handler for op, or nil for unknown operations.
func (h *ContentHandler[T, PT]) Handler(op policy.Operation) http.HandlerFunc {
	switch op {
	case policy.List:
		return h.List
	case policy.Get:
		return h.Get
	case policy.Create:
		return h.Create
	case policy.Update:
		return h.Update
	case policy.Delete:
		return h.Delete
	}
	return nil
}

func (h *ContentHandler[T, PT]) notFound() string {
	return "Not found in " + h.collection
}

// List returns one page of the collection, newest first.
// GET /api/v1/{collection}?limit=&offset=
func (h *ContentHandler[T, PT]) List(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(queryInt(r, "limit", defaultLimit), 1, maxLimit)
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	docs, total, err := h.store.ListDocuments(r.Context(), h.collection, limit, offset)
	if err != nil {
		writeStoreError(w, r, h.logger, err, h.notFound())
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: docs,
		Meta: &model.ResponseMeta{
			Count:  len(docs),
			Total:  total,
			Limit:  limit,
			Offset: offset,
		},
	})
}

// Get returns a single document.
// GET /api/v1/{collection}/{id}
func (h *ContentHandler[T, PT]) Get(w http.ResponseWriter, r *http.Request) {
	doc := PT(new(T))
	if err := h.store.GetDocument(r.Context(), h.collection, chi.URLParam(r, "id"), doc); err != nil {
		writeStoreError(w, r, h.logger, err, h.notFound())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Create validates and stores a new document.
// POST /api/v1/{collection}
func (h *ContentHandler[T, PT]) Create(w http.ResponseWriter, r *http.Request) {
	doc := PT(new(T))
	if err := readJSON(r, doc); err != nil {
		writeBodyError(w, err)
		return
	}
	*doc.Meta() = model.DocumentMeta{}

	if err := model.Validate(doc); err != nil {
		writeStoreError(w, r, h.logger, err, h.notFound())
		return
	}

	err := h.store.WithTx(r.Context(), func(tx *config.Tx) error {
		if h.hooks.BeforeCreate != nil {
			if err := h.hooks.BeforeCreate(r.Context(), tx, doc); err != nil {
				return err
			}
		}
		return tx.InsertDocument(r.Context(), h.collection, doc)
	})
	if err != nil {
		writeStoreError(w, r, h.logger, err, h.notFound())
		return
	}

	if h.hooks.AfterCreate != nil {
		h.hooks.AfterCreate(doc)
	}
	writeJSON(w, http.StatusCreated, doc)
}

// Update merges the provided fields into an existing document and
// revalidates it. Fields absent from the body keep their stored values.
// PUT /api/v1/{collection}/{id}
func (h *ContentHandler[T, PT]) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeBodyError(w, err)
		return
	}

	var updated PT
	err = h.store.WithTx(r.Context(), func(tx *config.Tx) error {
		// Locked so concurrent updates see each other's hook effects.
		old := PT(new(T))
		if err := tx.GetDocumentForUpdate(r.Context(), h.collection, id, old); err != nil {
			return err
		}
		doc := PT(new(T))
		if err := tx.GetDocument(r.Context(), h.collection, id, doc); err != nil {
			return err
		}

		meta := *doc.Meta()
		if err := decodeStrict(bytes.NewReader(body), doc); err != nil {
			return &bodyError{err}
		}
		*doc.Meta() = meta

		if err := model.Validate(doc); err != nil {
			return err
		}
		if h.hooks.BeforeUpdate != nil {
			if err := h.hooks.BeforeUpdate(r.Context(), tx, old, doc); err != nil {
				return err
			}
		}
		if err := tx.UpdateDocument(r.Context(), h.collection, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	if err != nil {
		var be *bodyError
		if errors.As(err, &be) {
			writeBodyError(w, be.err)
			return
		}
		writeStoreError(w, r, h.logger, err, h.notFound())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a document.
// DELETE /api/v1/{collection}/{id}
func (h *ContentHandler[T, PT]) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.store.WithTx(r.Context(), func(tx *config.Tx) error {
		if h.hooks.BeforeDelete != nil {
			old := PT(new(T))
			if err := tx.GetDocumentForUpdate(r.Context(), h.collection, id, old); err != nil {
				return err
			}
			if err := h.hooks.BeforeDelete(r.Context(), tx, old); err != nil {
				return err
			}
		}
		return tx.DeleteDocument(r.Context(), h.collection, id)
	})
	if err != nil {
		writeStoreError(w, r, h.logger, err, h.notFound())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      id,
	})
}

type bodyError struct{ err error }

func (e *bodyError) Error() string { return e.err.Error() }

func writeBodyError(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
}
