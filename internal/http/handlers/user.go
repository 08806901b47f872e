package handlers

import "net/http"

type userDTO struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Credits int    `json:"credits"`
}

// Me reports the caller's profile and remaining generation credits.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	user, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, userDTO{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Credits: user.Credits,
	})
}
