package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/crud/internal/crud"
	"github.com/JonMunkholm/crud/internal/logging"
	"github.com/JonMunkholm/crud/internal/web/views"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

// maxFormBytes caps submitted form bodies.
const maxFormBytes = 1 << 20

type operation func(*crud.Controller, context.Context, crud.Request) (crud.Result, error)

var operations = map[string]operation{
	crud.OpIndex:  (*crud.Controller).Index,
	crud.OpList:   (*crud.Controller).List,
	crud.OpRead:   (*crud.Controller).Read,
	crud.OpCreate: (*crud.Controller).Create,
	crud.OpEdit:   (*crud.Controller).Edit,
	crud.OpDelete: (*crud.Controller).Delete,
}

func resourceParam(r *http.Request) string {
	return chi.URLParam(r, "resource")
}

// handleDashboard lists the registered resources.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctrls := s.registry.All()
	cards := make([]views.ResourceCard, len(ctrls))
	for i, c := range ctrls {
		schema := c.Schema()
		cards[i] = views.ResourceCard{Name: c.Name(), Table: schema.Table, Columns: len(schema.Columns)}
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, dashboardJSON(cards))
		return
	}
	flash := s.flash.pop(w, r)
	s.render(w, r, http.StatusOK, views.Page(s.cfg.Crud.Title, "", flash, views.Dashboard(cards)))
}

// handle serves one controller operation. GET requests are non-mutating;
// POST requests may change storage.
func (s *Server) handle(op string) http.HandlerFunc {
	run := operations[op]
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, err := s.registry.Lookup(resourceParam(r))
		if err != nil {
			s.respondError(w, r, err, statusFor(err))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			s.respondError(w, r, fmt.Errorf("parse form: %w", err), http.StatusBadRequest)
			return
		}

		ctx := WithRequestMetadata(r.Context(), r)
		res, err := run(ctrl, ctx, crud.Request{
			Mutating: r.Method == http.MethodPost,
			Params:   r.Form,
		})

		switch {
		case res.Redirect != "":
			s.redirect(w, r, ctrl, res)
		case res.View == "":
			s.respondError(w, r, err, statusFor(err))
		default:
			status := http.StatusOK
			if err != nil {
				status = statusFor(err)
				logError(r, err, status, crud.MapError(err).Code)
			}
			s.renderResult(w, r, ctrl, res, status)
		}
	}
}

// redirect sends the client to the operation named by res.Redirect,
// queueing its flash message.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, ctrl *crud.Controller, res crud.Result) {
	target := views.URL(ctrl.Name(), res.Redirect, nil)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, redirectJSON{Redirect: target, Message: res.Flash})
		return
	}
	if res.Flash != "" {
		s.flash.add(w, r, res.Flash)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// renderResult renders the view a controller asked for.
func (s *Server) renderResult(w http.ResponseWriter, r *http.Request, ctrl *crud.Controller, res crud.Result, status int) {
	if wantsJSON(r) {
		if res.Err != nil {
			respondErrorJSON(w, res.Err, crud.MapError(res.Err), status)
			return
		}
		writeJSON(w, status, resultJSON(ctrl, res))
		return
	}

	name := ctrl.Name()
	key := strings.Join(res.Key, " / ")

	var heading string
	var body templ.Component
	switch res.View {
	case crud.ViewList:
		heading = name
		body = views.List(name, res.List, res.Err)
	case crud.ViewDetail:
		heading = name + " " + key
		body = views.Detail(name, ctrl.Schema().Columns, res.Record, res.Key)
	case crud.ViewForm:
		heading = "New " + name + " record"
		if res.Form.Editing {
			heading = "Edit " + name + " " + key
		}
		body = views.Form(name, res.Form, res.Key, res.Err)
	case crud.ViewConfirm:
		heading = "Delete " + name + " " + key
		body = views.ConfirmDelete(name, res.Key)
	default:
		s.respondError(w, r, fmt.Errorf("unknown view %q", res.View), http.StatusInternalServerError)
		return
	}

	flash := s.flash.pop(w, r)
	s.render(w, r, status, views.Page(ctrl.Title(), heading, flash, body))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Warn("render failed", "error", err)
	}
}
