package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rdcleanpath/gateway/internal/store"
)

// ListUsers returns every user, admin only.
func (a *API) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.store.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	public := make([]store.PublicUser, len(users))
	for i, u := range users {
		public[i] = u.Public()
	}
	writeJSON(w, http.StatusOK, public)
}

type createUserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func isValidRole(role string) bool {
	return role == store.RoleAdmin || role == store.RoleUser
}

// CreateUser creates a new account, admin only.
func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	var body createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(body.Username) == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	role := body.Role
	if role == "" {
		role = store.RoleUser
	}
	if !isValidRole(role) {
		writeError(w, http.StatusBadRequest, "role must be 'admin' or 'user'")
		return
	}

	user, err := a.store.Create(body.Username, body.Password, body.DisplayName, role)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			writeError(w, http.StatusConflict, "user already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user.Public())
}

// GetUser returns one user by ID, admin only.
func (a *API) GetUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user, err := a.store.GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

type updateUserRequest struct {
	DisplayName *string `json:"display_name"`
	Role        *string `json:"role"`
	Password    *string `json:"password"`
}

// UpdateUser applies partial updates to one user, admin only.
func (a *API) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Role != nil && !isValidRole(*body.Role) {
		writeError(w, http.StatusBadRequest, "role must be 'admin' or 'user'")
		return
	}

	user, err := a.store.Update(id, store.UpdateFields{
		DisplayName: body.DisplayName,
		Role:        body.Role,
		Password:    body.Password,
	})
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

// DeleteUser removes one user, admin only, refusing self-deletion.
func (a *API) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	claims := claimsFromContext(r.Context())

	if claims.Subject == id {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	deleted, err := a.store.Delete(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
