package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
	"github.com/secmon-lab/zatsugaku/pkg/utils/logging"
)

type AuthUseCase = usecase.AuthUseCaseInterface

type Server struct {
	router *chi.Mux
	uc     *usecase.UseCases
	authUC AuthUseCase
}

type Options func(*Server)

// WithAuth enables bearer token verification. Without it every request
// is anonymous and authenticated routes answer 401.
func WithAuth(authUC AuthUseCase) Options {
	return func(s *Server) {
		s.authUC = authUC
	}
}

func New(uc *usecase.UseCases, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(s.authUC))

			r.With(requireUser).Get("/auth/me", authMeHandler)

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", s.listEntriesHandler)
				r.With(requireUser).Post("/", s.createEntryHandler)
				r.Get("/recent", s.recentEntriesHandler)
				r.Get("/search", s.searchEntriesHandler)
				r.Get("/{id}", s.getEntryHandler)
				r.With(requireUser).Put("/{id}", s.updateEntryHandler)
				r.With(requireUser).Delete("/{id}", s.deleteEntryHandler)
			})

			r.Route("/tags", func(r chi.Router) {
				r.Get("/", s.listTagsHandler)
				r.With(requireUser).Post("/", s.createTagHandler)
				// GET takes a tag name, PUT and DELETE take a tag ID
				r.Get("/{tag}", s.getTagHandler)
				r.With(requireUser).Put("/{tag}", s.updateTagHandler)
				r.With(requireUser).Delete("/{tag}", s.deleteTagHandler)
			})

			r.With(requireLogin(msgLoginRequired)).Post("/similarity-search", s.similaritySearchHandler)
			r.Get("/similarity/config", s.similarityConfigHandler)

			r.Route("/embeddings", func(r chi.Router) {
				r.Use(requireUser)
				r.Post("/", s.generateEmbeddingHandler)
				r.Put("/", s.batchGenerateHandler)
				r.Get("/stats", s.embeddingStatsHandler)
			})
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger logs HTTP requests and puts a request-scoped logger into
// the context
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.Default().With("request_id", middleware.GetReqID(r.Context()))
		ctx := logging.With(r.Context(), logger)

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
}
