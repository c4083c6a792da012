package api

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/form/formdata"
	savedraft "admissions-portal/internal/services/applications/save-draft"
	submitapplication "admissions-portal/internal/services/applications/submit-application"
	searchprograms "admissions-portal/internal/services/catalog/search-programs"

	"github.com/gorilla/mux"
)

type draftResponse struct {
	Success   bool   `json:"success"`
	DraftID   string `json:"draftId"`
	Created   bool   `json:"created"`
	UpdatedAt string `json:"updatedAt"`
}

type applicationResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	CreatedAt     string `json:"createdAt"`
}

func (s *Server) loadDraftRoutes(parent *mux.Router) {
	router := parent.PathPrefix("/drafts").Subrouter()
	router.HandleFunc("", s.HandleSaveDraft).Methods(http.MethodPost)
	router.HandleFunc("/{id}", s.HandleGetDraft).Methods(http.MethodGet)
}

func (s *Server) loadApplicationRoutes(parent *mux.Router) {
	parent.HandleFunc("/applications", s.HandleSubmitApplication).Methods(http.MethodPost)
}

func (s *Server) loadProgramRoutes(parent *mux.Router) {
	router := parent.PathPrefix("/programs").Subrouter()
	router.HandleFunc("", s.HandleSearchPrograms).Methods(http.MethodGet)
	router.HandleFunc("/{id}", s.HandleGetProgram).Methods(http.MethodGet)
}

// HandleSaveDraft creates or overwrites a server-side draft.
func (s *Server) HandleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var input savedraft.Input
	if err := decodeRequest(w, r, draftRequest, &input, false); err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}

	out, err := s.deps.Drafts.Execute(r.Context(), &input)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, draftResponse{
		Success:   true,
		DraftID:   out.DraftID,
		Created:   out.Created,
		UpdatedAt: out.UpdatedAt,
	})
}

func (s *Server) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.deps.Drafts.Load(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// HandleSubmitApplication validates and stores a complete application.
func (s *Server) HandleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	var input submitapplication.Input
	if err := decodeRequest(w, r, applicationRequest, &input, false); err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	if input.Data == nil {
		input.Data = formdata.Data{}
	}

	out, err := s.deps.Applications.Execute(r.Context(), &input)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, applicationResponse{
		Success:       true,
		Message:       "Application submitted successfully",
		ApplicationID: out.ApplicationID,
		Status:        out.ApplicationStatus,
		CreatedAt:     out.CreatedAt,
	})
}

// HandleSearchPrograms serves ?q=&category=&from=&size= against the catalog.
func (s *Server) HandleSearchPrograms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := &searchprograms.Input{
		Query:    q.Get("q"),
		Category: q.Get("category"),
	}
	for name, dst := range map[string]*int{"from": &input.From, "size": &input.Size} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.errors.WriteHTTP(w, r, apperrors.NewInvalidRequestError(name+" must be a non-negative integer"))
			return
		}
		*dst = n
	}

	out, err := s.deps.Catalog.Execute(r.Context(), input)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) HandleGetProgram(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	program, err := s.deps.Catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, searchprograms.ErrProgramNotFound) {
			err = apperrors.NewProgramNotFoundError(id)
		}
		s.errors.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, program)
}
