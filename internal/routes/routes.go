package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stanstork/invitation-api/internal/authz"
	"github.com/stanstork/invitation-api/internal/handlers"
	"github.com/stanstork/invitation-api/internal/models"
)

// NewRouter sets up the API routes
func NewRouter(
	jwtSecret string,
	invite *handlers.InviteHandler,
	request *handlers.RequestHandler,
	stats *handlers.StatsHandler,
	batch *handlers.BatchHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public endpoints: redeeming a key and asking to be invited need no principal.
	router.HandleFunc("/api/invitations/{key}", invite.PreviewInvite).Methods(http.MethodGet)
	router.HandleFunc("/api/invitations/{key}/accept", invite.AcceptInvite).Methods(http.MethodPost)
	router.HandleFunc("/api/invitation-requests", request.SubmitRequest).Methods(http.MethodPost)

	// Authenticated endpoints.
	principal := authz.Principal(jwtSecret)
	admin := authz.RequireRole(models.RoleAdmin)

	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(principal)

	authed.Handle("/invitations", http.HandlerFunc(invite.CreateInvite)).Methods(http.MethodPost)
	authed.Handle("/users/{username}/stats", http.HandlerFunc(stats.GetStats)).Methods(http.MethodGet)

	// Admin surfaces: list views, quota grants, maintenance, batch trigger.
	authed.Handle("/invitations", admin(http.HandlerFunc(invite.ListInvitations))).Methods(http.MethodGet)
	authed.Handle("/invitations/expired", admin(http.HandlerFunc(invite.PurgeExpired))).Methods(http.MethodDelete)
	authed.Handle("/invitation-requests", admin(http.HandlerFunc(request.ListRequests))).Methods(http.MethodGet)
	authed.Handle("/users/{username}/quota", admin(http.HandlerFunc(stats.GrantQuota))).Methods(http.MethodPost)
	authed.Handle("/invitations/batch", admin(http.HandlerFunc(batch.TriggerBatch))).Methods(http.MethodPost)

	return router
}
