package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterUserRoutes mounts the user account API on r. gate guards the authenticated routes and
// limit throttles the credential endpoints.
func RegisterUserRoutes(r *mux.Router, auth *AuthHandler, users *UserHandler, gate, limit mux.MiddlewareFunc) {
	public := r.PathPrefix("/users").Subrouter()
	public.Handle("/register", limit(http.HandlerFunc(auth.Register))).Methods("POST", "OPTIONS")
	public.Handle("/login", limit(http.HandlerFunc(auth.Login))).Methods("POST", "OPTIONS")
	public.Handle("/refresh-token", limit(http.HandlerFunc(auth.RefreshToken))).Methods("POST", "OPTIONS")

	protected := r.PathPrefix("/users").Subrouter()
	protected.Use(gate)
	protected.HandleFunc("/logout", auth.Logout).Methods("POST", "OPTIONS")
	protected.HandleFunc("/change-password", auth.ChangePassword).Methods("POST", "OPTIONS")
	protected.HandleFunc("/current-user", users.GetCurrentUser).Methods("GET", "OPTIONS")
	protected.HandleFunc("/update-account", users.UpdateAccount).Methods("PATCH", "OPTIONS")
	protected.HandleFunc("/avatar", users.UpdateAvatar).Methods("PATCH", "OPTIONS")
	protected.HandleFunc("/cover-image", users.UpdateCoverImage).Methods("PATCH", "OPTIONS")
}
