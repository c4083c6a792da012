// Package api exposes the application backend and the wizard sessions over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"

	apperrors "admissions-portal/internal/common/errors"
	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/common/metrics"
	"admissions-portal/internal/form/session"
	savedraft "admissions-portal/internal/services/applications/save-draft"
	submitapplication "admissions-portal/internal/services/applications/submit-application"
	searchprograms "admissions-portal/internal/services/catalog/search-programs"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const APIPrefix = "/api/v1"

type DraftStore interface {
	Execute(ctx context.Context, input *savedraft.Input) (*savedraft.Output, error)
	Load(ctx context.Context, draftID string) (*savedraft.Draft, error)
}

type ApplicationStore interface {
	Execute(ctx context.Context, input *submitapplication.Input) (*submitapplication.Output, error)
}

type ProgramCatalog interface {
	Execute(ctx context.Context, input *searchprograms.Input) (*searchprograms.Output, error)
	Get(ctx context.Context, programID string) (*searchprograms.Program, error)
}

// Dependencies left nil switch their routes off; a wizard-only deployment
// that talks to a remote backend runs with Sessions alone.
type Dependencies struct {
	Sessions       *session.Manager
	Drafts         DraftStore
	Applications   ApplicationStore
	Catalog        ProgramCatalog
	AllowedOrigins []string
	Logger         logger.Logger
}

type Server struct {
	deps   Dependencies
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	log := deps.Logger.WithFields(map[string]interface{}{"component": "api"})
	return &Server{
		deps:   deps,
		errors: apperrors.NewErrorHandler(log),
		logger: log,
	}
}

// jsonMiddleware sets the Content-Type header to application/json
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Router builds the API routes under /api/v1.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	apiRouter := router.PathPrefix(APIPrefix).Subrouter()
	apiRouter.Use(jsonMiddleware)

	if s.deps.Drafts != nil {
		s.loadDraftRoutes(apiRouter)
	}
	if s.deps.Applications != nil {
		s.loadApplicationRoutes(apiRouter)
	}
	if s.deps.Catalog != nil {
		s.loadProgramRoutes(apiRouter)
	}
	if s.deps.Sessions != nil {
		s.loadSessionRoutes(apiRouter)
	}
	return router
}

// Handler wraps Router with request logging and CORS.
func (s *Server) Handler() http.Handler {
	router := s.Router()
	logged := handlers.CustomLoggingHandler(io.Discard, router, s.logRequest(router))

	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)(logged)
}

// logRequest reports each request through the structured logger and the
// request counter, labelled by route template rather than raw path.
func (s *Server) logRequest(router *mux.Router) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		route := "unmatched"
		var match mux.RouteMatch
		if router.Match(p.Request, &match) && match.Route != nil {
			if tpl, err := match.Route.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(p.Request.Method, route, strconv.Itoa(p.StatusCode)).Inc()

		fields := map[string]interface{}{
			"method": p.Request.Method,
			"route":  route,
			"status": p.StatusCode,
			"bytes":  p.Size,
		}
		if p.StatusCode >= http.StatusInternalServerError {
			s.logger.Warn("HTTP request", fields)
			return
		}
		s.logger.Debug("HTTP request", fields)
	}
}
