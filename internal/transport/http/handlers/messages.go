package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/placenotes/internal/models"
	"github.com/pribylovaa/placenotes/internal/service"
	apierrors "github.com/pribylovaa/placenotes/internal/transport/http/errors"
	"github.com/pribylovaa/placenotes/internal/transport/http/middleware"
)

// FindNear: GET /messages/near?lon=&lat=&radius=&page=
func (h *Handlers) FindNear(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lon, okLon := parseFloat(q.Get("lon"))
	lat, okLat := parseFloat(q.Get("lat"))
	if !okLon || !okLat {
		apierrors.WriteError(w, r, service.ErrInvalidLocation)
		return
	}

	radius := h.defaultRadius
	if v := q.Get("radius"); v != "" {
		var ok bool
		if radius, ok = parseFloat(v); !ok {
			apierrors.WriteError(w, r, service.ErrInvalidRadius)
			return
		}
	}

	page, ok := parsePage(q.Get("page"))
	if !ok {
		apierrors.WriteError(w, r, statusErrorInvalidArgument())
		return
	}

	res, err := h.svc.FindNear(r.Context(), service.NearInput{
		Longitude: lon,
		Latitude:  lat,
		Radius:    radius,
		Page:      page,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(res, true))
}

// FindInbox: GET /messages/inbox?page= для текущего пользователя.
func (h *Handlers) FindInbox(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, statusErrorUnauthenticated())
		return
	}

	page, ok := parsePage(r.URL.Query().Get("page"))
	if !ok {
		apierrors.WriteError(w, r, statusErrorInvalidArgument())
		return
	}

	res, err := h.svc.FindInbox(r.Context(), service.InboxInput{UserID: uid, Page: page})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPageResponse(res, false))
}

// CreateMessage: POST /messages.
func (h *Handlers) CreateMessage(w http.ResponseWriter, r *http.Request) {
	h.createItem(w, r, models.KindMessage)
}

// CreateNote: POST /notes.
func (h *Handlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	h.createItem(w, r, models.KindNote)
}

func (h *Handlers) createItem(w http.ResponseWriter, r *http.Request, kind models.Kind) {
	uid, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, statusErrorUnauthenticated())
		return
	}

	var in createItemRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, statusErrorInvalidArgument())
		return
	}

	if in.Longitude == nil || in.Latitude == nil {
		apierrors.WriteError(w, r, service.ErrInvalidLocation)
		return
	}

	it, err := h.svc.CreateItem(r.Context(), service.CreateItemInput{
		OwnerID:     uid,
		RecipientID: in.RecipientID,
		Kind:        kind,
		Body:        in.Body,
		Longitude:   *in.Longitude,
		Latitude:    *in.Latitude,
		Radius:      in.Radius,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toItemDTO(*it))
}

// UpdateBody: PATCH /messages/{id}.
func (h *Handlers) UpdateBody(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, statusErrorUnauthenticated())
		return
	}

	var in updateBodyRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, statusErrorInvalidArgument())
		return
	}

	it, err := h.svc.UpdateBody(r.Context(), service.UpdateBodyInput{
		ItemID:   chi.URLParam(r, "id"),
		CallerID: uid,
		Body:     in.Body,
	})
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemDTO(*it))
}

// SetRead возвращает ручку POST /messages/{id}/read (read=true) или /unread (read=false).
func (h *Handlers) SetRead(read bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := middleware.UserIDFrom(r.Context())
		if !ok {
			apierrors.WriteError(w, r, statusErrorUnauthenticated())
			return
		}

		it, err := h.svc.MarkRead(r.Context(), service.MarkReadInput{
			ItemID:   chi.URLParam(r, "id"),
			CallerID: uid,
			Read:     read,
		})
		if err != nil {
			apierrors.WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toItemDTO(*it))
	}
}

// SetHidden возвращает ручку POST /messages/{id}/hide (hidden=true) или /unhide.
func (h *Handlers) SetHidden(hidden bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := middleware.UserIDFrom(r.Context())
		if !ok {
			apierrors.WriteError(w, r, statusErrorUnauthenticated())
			return
		}

		it, err := h.svc.SetHidden(r.Context(), service.SetHiddenInput{
			ItemID:   chi.URLParam(r, "id"),
			CallerID: uid,
			Hidden:   hidden,
		})
		if err != nil {
			apierrors.WriteError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toItemDTO(*it))
	}
}

// DeleteItem: DELETE /messages/{id}, 204 без тела.
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	uid, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, statusErrorUnauthenticated())
		return
	}

	if err := h.svc.DeleteItem(r.Context(), chi.URLParam(r, "id"), uid); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseFloat принимает только конечные числа.
func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return f, true
}

// parsePage: пустое значение означает первую страницу.
func parsePage(s string) (int, bool) {
	if s == "" {
		return 1, true
	}

	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}

	return n, true
}
