// Package httpapi exposes the rendezvous store over plain HTTP.
//
// Every outcome the caller can act on is a 200 with a plain-text body;
// clients tell outcomes apart by matching the body.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/rendezvous/internal/platform/errors"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/domain"
	"github.com/louisbranch/rendezvous/internal/services/rendezvous/store"
)

// ReplyDatastore acknowledges a write that went to the durable tier.
const ReplyDatastore = "OK (Datastore)"

// Service is the rendezvous contract served by the handler.
type Service interface {
	Put(ctx context.Context, key string, bundle domain.Bundle) (store.TierKind, error)
	Get(ctx context.Context, key string) (domain.Bundle, bool, error)
}

// Handler serves rendezvous puts and gets.
type Handler struct {
	service Service
	logf    func(string, ...any)
}

// NewHandler creates a handler over service.
func NewHandler(service Service) *Handler {
	return &Handler{service: service, logf: log.Printf}
}

// RegisterRoutes mounts the broker on mux. POST is accepted on any path; GET
// reads the key from the last path segment.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /", h.handlePut)
	mux.HandleFunc("GET /", h.handleGet)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	bundle, err := readForm(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	key, _ := bundle.Get(domain.FieldKey)
	tier, err := h.service.Put(r.Context(), key, bundle)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tier == store.TierDurable {
		writeText(w, http.StatusOK, ReplyDatastore+"\n")
		return
	}
	h.writeBundle(w, r, bundle)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := keyFromPath(r.URL.Path)
	bundle, found, err := h.service.Get(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !found {
		writeText(w, http.StatusOK, "")
		return
	}
	h.writeBundle(w, r, bundle)
}

// keyFromPath returns the last '/'-separated segment of path.
func keyFromPath(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func (h *Handler) writeBundle(w http.ResponseWriter, r *http.Request, bundle domain.Bundle) {
	body, err := json.Marshal(bundle)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, string(body)+"\n")
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	if code.UserFacing() {
		writeText(w, http.StatusOK, code.Reply()+"\n")
		return
	}
	if h.logf != nil {
		h.logf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeText(w, http.StatusInternalServerError, code.Reply()+"\n")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if body != "" {
		_, _ = w.Write([]byte(body))
	}
}
