package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facemood/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	svc := s.services
	identitiesHandler := handlers.NewIdentitiesHandler(svc.Store, svc.Enrollment, svc.Index)
	recognizeHandler := handlers.NewRecognizeHandler(svc.Store, svc.Pipeline, svc.Index, s.config.Matching.MatchThreshold)
	reportsHandler := handlers.NewReportsHandler(svc.Reporting)
	auditHandler := handlers.NewAuditHandler(svc.Enrollment, handlers.NewJobManager(), s.config.Audit.Neighbors, s.config.Audit.IndexPath)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities", identitiesHandler.Create)
		r.Get("/identities/{id}", identitiesHandler.Get)
		r.Delete("/identities/{id}", identitiesHandler.Delete)

		// Reports
		r.Get("/identities/{id}/detections", reportsHandler.Detections)
		r.Get("/identities/{id}/report", reportsHandler.Report)

		// Recognition
		r.Post("/recognize", recognizeHandler.Recognize)
		r.Post("/index/refresh", recognizeHandler.RefreshIndex)

		// Near-duplicate audit jobs
		r.Get("/audit", auditHandler.List)
		r.Post("/audit", auditHandler.Start)
		r.Get("/audit/{jobId}", auditHandler.Status)
		r.Get("/audit/{jobId}/events", auditHandler.Events)
		r.Delete("/audit/{jobId}", auditHandler.Cancel)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})
}
