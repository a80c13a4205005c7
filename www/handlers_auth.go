package www

import (
	"encoding/json"
	"net/http"
)

func (h *Handlers) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	db := h.engine.DB()

	// First login bootstraps the admin account
	exists, _ := db.AdminUserExists()
	if !exists {
		hash, err := hashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if _, err := db.CreateAdminUser(req.Username, hash); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create admin user")
			return
		}
		h.sessions.setUser(w, r, req.Username)
		writeJSON(w, map[string]interface{}{"status": "ok", "username": req.Username, "created": true})
		return
	}

	user, err := db.GetAdminUser(req.Username)
	if err != nil || !checkPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	h.sessions.setUser(w, r, req.Username)
	writeJSON(w, map[string]interface{}{"status": "ok", "username": req.Username})
}

func (h *Handlers) apiLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.clear(w, r)
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiSession(w http.ResponseWriter, r *http.Request) {
	username, ok := h.sessions.getUser(r)
	writeJSON(w, map[string]interface{}{
		"logged_in": ok && username != "",
		"username":  username,
	})
}

func (h *Handlers) apiChangePassword(w http.ResponseWriter, r *http.Request) {
	username, ok := h.sessions.getUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "new password is required")
		return
	}

	user, err := h.engine.DB().GetAdminUser(username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "user not found")
		return
	}
	if !checkPassword(req.OldPassword, user.PasswordHash) {
		writeError(w, http.StatusBadRequest, "current password is incorrect")
		return
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := h.engine.DB().UpdateAdminPassword(username, hash); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}
