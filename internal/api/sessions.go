package api

import (
	"net/http"
	"strconv"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/form/formdata"
	"admissions-portal/internal/form/session"
	"admissions-portal/internal/form/submission"

	"github.com/gorilla/mux"
)

type sessionResponse struct {
	Session session.View        `json:"session"`
	Outcome *submission.Outcome `json:"outcome,omitempty"`
}

type createSessionBody struct {
	DraftID string `json:"draftId"`
}

type setFieldBody struct {
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

func (s *Server) loadSessionRoutes(parent *mux.Router) {
	router := parent.PathPrefix("/sessions").Subrouter()
	router.HandleFunc("", s.HandleCreateSession).Methods(http.MethodPost)
	router.HandleFunc("/{id}", s.HandleGetSession).Methods(http.MethodGet)
	router.HandleFunc("/{id}", s.HandleDeleteSession).Methods(http.MethodDelete)
	router.HandleFunc("/{id}/data", s.HandleUpdateSession).Methods(http.MethodPatch)
	router.HandleFunc("/{id}/fields", s.HandleSetField).Methods(http.MethodPut)
	router.HandleFunc("/{id}/next", s.HandleNext).Methods(http.MethodPost)
	router.HandleFunc("/{id}/previous", s.HandlePrevious).Methods(http.MethodPost)
	router.HandleFunc("/{id}/steps/{index:[0-9]+}", s.HandleGoTo).Methods(http.MethodPost)
	router.HandleFunc("/{id}/submit", s.HandleSubmitSession).Methods(http.MethodPost)
	router.HandleFunc("/{id}/draft", s.HandleSaveSessionDraft).Methods(http.MethodPost)
	router.HandleFunc("/{id}/banner", s.HandleDismissBanner).Methods(http.MethodDelete)
	router.HandleFunc("/{id}/reset", s.HandleResetSession).Methods(http.MethodPost)
}

// session resolves {id}; it writes the error response itself and returns nil.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, err := s.deps.Sessions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return nil
	}
	return sess
}

// respond writes the view, next to the error when the action was refused,
// so the client can render inline errors without a second request.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, resp sessionResponse, err error) {
	if err != nil {
		extra := map[string]interface{}{"session": resp.Session}
		if resp.Outcome != nil {
			extra["outcome"] = resp.Outcome
		}
		s.errors.WriteHTTPWith(w, r, err, extra)
		return
	}
	writeJSON(w, status, resp)
}

// HandleCreateSession starts a wizard, seeded from a saved draft when the
// body names one.
func (s *Server) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := decodeRequest(w, r, createSessionRequest, &body, true); err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}

	var (
		sess *session.Session
		err  error
	)
	if body.DraftID != "" {
		sess, err = s.deps.Sessions.Restore(r.Context(), body.DraftID)
	} else {
		sess, err = s.deps.Sessions.Create()
	}
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	w.Header().Set("Location", APIPrefix+"/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sessionResponse{Session: sess.View()})
}

func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		writeJSON(w, http.StatusOK, sessionResponse{Session: sess.View()})
	}
}

func (s *Server) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateSession merges a partial form, keyed by section.
func (s *Server) HandleUpdateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var partial formdata.Data
	if err := decodeRequest(w, r, partialUpdateRequest, &partial, false); err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	view, err := sess.Update(partial)
	s.respond(w, r, http.StatusOK, sessionResponse{Session: view}, err)
}

func (s *Server) HandleSetField(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var body setFieldBody
	if err := decodeRequest(w, r, setFieldRequest, &body, false); err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	view, err := sess.SetField(body.Path, body.Value)
	s.respond(w, r, http.StatusOK, sessionResponse{Session: view}, err)
}

func (s *Server) HandleNext(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		view, err := sess.Next()
		s.respond(w, r, http.StatusOK, sessionResponse{Session: view}, err)
	}
}

func (s *Server) HandlePrevious(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		view, err := sess.Previous()
		s.respond(w, r, http.StatusOK, sessionResponse{Session: view}, err)
	}
}

func (s *Server) HandleGoTo(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		s.errors.WriteHTTP(w, r, apperrors.NewInvalidRequestError("step index must be an integer"))
		return
	}
	view, err := sess.GoTo(index)
	s.respond(w, r, http.StatusOK, sessionResponse{Session: view}, err)
}

// HandleSubmitSession submits the wizard. The optional body carries the
// program/course the applicant arrived with.
func (s *Server) HandleSubmitSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var corr submission.Correlation
	if err := decodeRequest(w, r, submitRequest, &corr, true); err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	outcome, view, err := sess.Submit(r.Context(), corr)
	s.respond(w, r, http.StatusOK, sessionResponse{Session: view, Outcome: outcome}, err)
}

func (s *Server) HandleSaveSessionDraft(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		view, err := sess.SaveDraft(r.Context())
		if err != nil {
			err = apperrors.NewDraftSaveFailedError(err)
		}
		s.respond(w, r, http.StatusOK, sessionResponse{Session: view}, err)
	}
}

func (s *Server) HandleDismissBanner(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		writeJSON(w, http.StatusOK, sessionResponse{Session: sess.DismissBanner()})
	}
}

func (s *Server) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	if sess := s.session(w, r); sess != nil {
		writeJSON(w, http.StatusOK, sessionResponse{Session: sess.Reset()})
	}
}
