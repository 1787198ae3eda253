package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/scanctl/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// System metrics (no auth required for basic monitoring)
		r.Get("/metrics", s.handleMetrics)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/catalog", func(r chi.Router) {
				r.Use(requirePermission(auth.PermRegistryRead))
				r.Get("/commands", s.handleListCommands)
				r.Get("/groups", s.handleListGroups)
			})

			r.With(requirePermission(auth.PermRegistryRead)).Get("/adapters", s.handleListAdapters)

			r.Route("/controllers", func(r chi.Router) {
				r.With(requirePermission(auth.PermRegistryRead)).Get("/", s.handleListControllers)
				r.With(requirePermission(auth.PermRegistryManage)).Post("/", s.handleRegisterController)

				r.Route("/{address}", func(r chi.Router) {
					r.With(requirePermission(auth.PermRegistryRead)).Get("/", s.handleGetController)
					r.With(requirePermission(auth.PermRegistryManage)).Delete("/", s.handleUnregisterController)
					r.With(requirePermission(auth.PermRegistryManage)).Patch("/", s.handleUpdateController)
					r.With(requirePermission(auth.PermUnitManage)).Put("/commands", s.handleSetCommandState)
					r.With(requirePermission(auth.PermDispatchSend)).Post("/send", s.handleSendToController)

					r.Route("/macros", func(r chi.Router) {
						r.With(requirePermission(auth.PermRegistryRead)).Get("/", s.handleListControllerMacros)
						r.Group(func(r chi.Router) {
							r.Use(requirePermission(auth.PermMacroManage))
							r.Post("/", s.handleSaveControllerMacro)
							r.Post("/capture", s.handleCaptureMacro)
							r.Post("/{name}/apply", s.handleApplyMacro)
							r.Post("/{name}/rename", s.handleRenameControllerMacro)
							r.Delete("/{name}", s.handleDeleteControllerMacro)
						})
						r.With(requirePermission(auth.PermRegistryRead)).Get("/{name}", s.handleGetControllerMacro)
					})
				})
			})

			r.Route("/units", func(r chi.Router) {
				r.With(requirePermission(auth.PermRegistryRead)).Get("/", s.handleListUnits)
				r.Group(func(r chi.Router) {
					r.Use(requirePermission(auth.PermUnitManage))
					r.Put("/{unit}", s.handleAssociateUnit)
					r.Delete("/{unit}", s.handleClearUnit)
					r.Put("/{unit}/enabled", s.handleSetUnitEnabled)
				})
			})

			r.Route("/macros", func(r chi.Router) {
				r.With(requirePermission(auth.PermRegistryRead)).Get("/", s.handleListGlobalMacros)
				r.With(requirePermission(auth.PermRegistryRead)).Get("/{name}", s.handleGetGlobalMacro)
				r.Group(func(r chi.Router) {
					r.Use(requirePermission(auth.PermMacroManage))
					r.Post("/", s.handleSaveGlobalMacro)
					r.Post("/{name}/rename", s.handleRenameGlobalMacro)
					r.Delete("/{name}", s.handleDeleteGlobalMacro)
				})
			})

			r.Route("/dispatch", func(r chi.Router) {
				r.With(requirePermission(auth.PermRegistryRead)).Get("/status", s.handleDispatchStatus)
				r.Group(func(r chi.Router) {
					r.Use(requirePermission(auth.PermDispatchSend))
					r.Post("/broadcast", s.handleBroadcast)
					r.Post("/cancel", s.handleCancel)
				})
			})

			r.Route("/history", func(r chi.Router) {
				r.Use(requirePermission(auth.PermHistoryRead))
				r.Get("/", s.handleListRuns)
				r.Get("/{id}", s.handleGetRun)
			})

			r.With(requirePermission(auth.PermAuditRead)).Get("/audit-logs", s.handleListAuditLogs)

			r.Route("/operators", func(r chi.Router) {
				r.Use(requirePermission(auth.PermOperatorManage))
				r.Get("/", s.handleListOperators)
				r.Post("/", s.handleCreateOperator)
				r.Get("/{id}", s.handleGetOperator)
				r.Patch("/{id}", s.handleUpdateOperator)
				r.Delete("/{id}", s.handleDeleteOperator)
			})
			r.Put("/auth/password", s.handleChangePassword)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"sending": s.console.IsSending(),
	})
}
