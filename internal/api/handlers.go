// Package api serves the JSON admin endpoints. Every handler hands its work
// to the owner loop and waits for the reply.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"webdeck/internal/app"
	"webdeck/internal/deck"
	"webdeck/internal/history"
	"webdeck/internal/httperr"
	"webdeck/internal/layout"
	"webdeck/internal/registry"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 50
	requestTimeout      = 5 * time.Second
)

// HistoryReader lists recent drained requests.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Status is what GET /api/status reports.
type Status struct {
	Running bool   `json:"running"`
	Port    int    `json:"port"`
	Clients int    `json:"clients"`
	Address string `json:"address,omitempty"`
	URL     string `json:"url,omitempty"`
}

type Handlers struct {
	app     *app.App
	history HistoryReader
	status  func() Status
	static  http.Handler
}

type Option func(*Handlers)

func WithHistory(r HistoryReader) Option {
	return func(h *Handlers) { h.history = r }
}

func WithStatus(fn func() Status) Option {
	return func(h *Handlers) { h.status = fn }
}

// WithStatic serves everything that is not an API route from s.
func WithStatic(s http.Handler) Option {
	return func(h *Handlers) { h.static = s }
}

func NewHandlers(a *app.App, opts ...Option) *Handlers {
	h := &Handlers{app: a}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts the API, and the static fallback when configured.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/buttons", h.listButtons).Methods(http.MethodGet)
	api.HandleFunc("/buttons", h.createButton).Methods(http.MethodPost)
	api.HandleFunc("/buttons/{id}", h.updateButton).Methods(http.MethodPut)
	api.HandleFunc("/buttons/{id}", h.deleteButton).Methods(http.MethodDelete)
	api.HandleFunc("/buttons/{id}/press", h.pressButton).Methods(http.MethodPost)

	api.HandleFunc("/layout", h.getLayout).Methods(http.MethodGet)
	api.HandleFunc("/layout/cells", h.setCell).Methods(http.MethodPut)
	api.HandleFunc("/layout/cells/{page:[0-9]+}/{row:[0-9]+}/{col:[0-9]+}", h.clearCell).Methods(http.MethodDelete)
	api.HandleFunc("/layout/swap", h.swap).Methods(http.MethodPost)
	api.HandleFunc("/layout/dimensions", h.resize).Methods(http.MethodPut)

	api.HandleFunc("/presets", h.listPresets).Methods(http.MethodGet)
	api.HandleFunc("/presets", h.savePreset).Methods(http.MethodPost)
	api.HandleFunc("/presets/{name}/load", h.loadPreset).Methods(http.MethodPost)

	api.HandleFunc("/status", h.getStatus).Methods(http.MethodGet)
	api.HandleFunc("/history", h.listHistory).Methods(http.MethodGet)

	if h.static != nil {
		r.PathPrefix("/").Methods(http.MethodGet, http.MethodHead).Handler(h.static)
	}
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	httperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail writes err, treating a stopped owner loop or a request that expired
// before the owner loop took it as temporary unavailability. Nothing was
// applied in either case.
func fail(w http.ResponseWriter, err error) {
	if errors.Is(err, app.ErrStopped) {
		httperr.WriteError(w, http.StatusServiceUnavailable, httperr.CodeUnavailable, err.Error())
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		httperr.WriteError(w, http.StatusServiceUnavailable, httperr.CodeUnavailable, "request expired before it was applied: "+err.Error())
		return
	}
	httperr.FromError(w, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httperr.WriteError(w, http.StatusBadRequest, httperr.CodeInvalidBody, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handlers) do(r *http.Request, fn func(d *deck.Deck) error) error {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	return h.app.Do(ctx, fn)
}

func (h *Handlers) view(r *http.Request, fn func(d *deck.Deck) error) error {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	return h.app.View(ctx, fn)
}

func (h *Handlers) listButtons(w http.ResponseWriter, r *http.Request) {
	var buttons []registry.Button
	err := h.view(r, func(d *deck.Deck) error {
		buttons = d.Buttons()
		return nil
	})
	if err != nil {
		fail(w, err)
		return
	}
	if buttons == nil {
		buttons = []registry.Button{}
	}
	httperr.WriteJSON(w, http.StatusOK, buttons)
}

func (h *Handlers) createButton(w http.ResponseWriter, r *http.Request) {
	var b registry.Button
	if !decode(w, r, &b) {
		return
	}
	if b.ID == "" {
		b.ID = "btn_" + uuid.NewString()
	}
	if err := h.do(r, func(d *deck.Deck) error { return d.AddButton(b) }); err != nil {
		fail(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusCreated, b)
}

func (h *Handlers) updateButton(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var b registry.Button
	if !decode(w, r, &b) {
		return
	}
	if b.ID == "" {
		b.ID = id
	}
	if err := h.do(r, func(d *deck.Deck) error { return d.UpdateButton(id, b) }); err != nil {
		fail(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, b)
}

func (h *Handlers) deleteButton(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.do(r, func(d *deck.Deck) error { return d.RemoveButton(id) }); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) pressButton(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.app.RequestAction(id)
	httperr.WriteJSON(w, http.StatusAccepted, map[string]string{"button_id": id})
}

func (h *Handlers) getLayout(w http.ResponseWriter, r *http.Request) {
	var g layout.Grid
	err := h.view(r, func(d *deck.Deck) error {
		g = d.Snapshot().Layout
		return nil
	})
	if err != nil {
		fail(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, g)
}

type cellRequest struct {
	ID   string `json:"id"`
	Page int    `json:"page"`
	Row  int    `json:"row"`
	Col  int    `json:"col"`
}

func (h *Handlers) setCell(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		httperr.WriteErrorWithField(w, http.StatusBadRequest, httperr.CodeValidation, "id is required", "id")
		return
	}
	pos := layout.Position{Page: req.Page, Row: req.Row, Col: req.Col}
	if err := h.do(r, func(d *deck.Deck) error { return d.SetPosition(req.ID, pos) }); err != nil {
		fail(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, req)
}

func (h *Handlers) clearCell(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var pos layout.Position
	for name, dst := range map[string]*int{"page": &pos.Page, "row": &pos.Row, "col": &pos.Col} {
		n, err := strconv.Atoi(vars[name])
		if err != nil {
			httperr.WriteErrorWithField(w, http.StatusBadRequest, httperr.CodeInvalidRequest, "invalid "+name, name)
			return
		}
		*dst = n
	}
	if err := h.do(r, func(d *deck.Deck) error { return d.ClearPosition(pos) }); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) swap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.do(r, func(d *deck.Deck) error { return d.Swap(req.A, req.B) }); err != nil {
		fail(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, req)
}

func (h *Handlers) resize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageCount int `json:"page_count"`
		Rows      int `json:"rows_per_page"`
		Cols      int `json:"cols_per_page"`
	}
	if !decode(w, r, &req) {
		return
	}
	var res layout.ResizeResult
	err := h.do(r, func(d *deck.Deck) error {
		var err error
		res, err = d.Resize(req.PageCount, req.Rows, req.Cols)
		return err
	})
	if err != nil {
		fail(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, res)
}

func (h *Handlers) listPresets(w http.ResponseWriter, r *http.Request) {
	var names []string
	err := h.view(r, func(d *deck.Deck) error {
		var err error
		names, err = d.ListPresets()
		return err
	})
	if err != nil {
		fail(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	httperr.WriteJSON(w, http.StatusOK, names)
}

func (h *Handlers) savePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.view(r, func(d *deck.Deck) error { return d.SavePreset(req.Name) }); err != nil {
		fail(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handlers) loadPreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.do(r, func(d *deck.Deck) error { return d.LoadPreset(name) }); err != nil {
		fail(w, err)
		return
	}
	httperr.WriteJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		httperr.WriteError(w, http.StatusNotImplemented, httperr.CodeUnavailable, "status not available")
		return
	}
	httperr.WriteJSON(w, http.StatusOK, h.status())
}

func (h *Handlers) listHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		httperr.WriteError(w, http.StatusNotImplemented, httperr.CodeUnavailable, "execution history is disabled")
		return
	}
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			httperr.WriteErrorWithField(w, http.StatusBadRequest, httperr.CodeInvalidRequest, "limit must be a positive integer", "limit")
			return
		}
		limit = n
	}
	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		httperr.FromError(w, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	httperr.WriteJSON(w, http.StatusOK, entries)
}
