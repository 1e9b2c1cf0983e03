package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"accountforge/internal/audit"
	"accountforge/internal/auth"
	"accountforge/internal/avatar"
)

type updateProfileRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Phone       *string        `json:"phone" validate:"omitempty,max=32"`
	Timezone    *string        `json:"timezone" validate:"omitempty,max=64"`
	Locale      *string        `json:"locale" validate:"omitempty,max=16"`
	Preferences map[string]any `json:"preferences"`

	// Accepted and ignored. These change through their own endpoints.
	Email    json.RawMessage `json:"email" validate:"-"`
	Password json.RawMessage `json:"password" validate:"-"`
	Role     json.RawMessage `json:"role" validate:"-"`
}

func (req updateProfileRequest) changes() auth.ProfileChanges {
	return auth.ProfileChanges{
		Name:        trimmed(req.Name),
		Phone:       trimmed(req.Phone),
		Timezone:    trimmed(req.Timezone),
		Locale:      trimmed(req.Locale),
		Preferences: req.Preferences,
	}
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !s.bind(w, r, &req) {
		return
	}

	before := currentUser(r.Context())
	changes := req.changes()
	updated, err := s.Users.UpdateProfile(r.Context(), before.ID, changes)
	if err != nil {
		s.log(r).Error().Err(err).Str("user_id", before.ID).Msg("update profile failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if !changes.Empty() {
		s.recordAudit(r, audit.Entry{
			Action:     audit.ActionProfileUpdate,
			ResourceID: before.ID,
			UserID:     before.ID,
			OldValues:  profileValues(before, changes),
			NewValues:  profileValues(updated, changes),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    updated.Public(),
	})
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, avatar.MaxSize+(1<<20))
	if err := r.ParseMultipartForm(avatar.MaxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, avatar.ErrTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	url, err := s.Avatars.Save(user.ID, file)
	switch {
	case errors.Is(err, avatar.ErrTooLarge), errors.Is(err, avatar.ErrUnsupportedType), errors.Is(err, avatar.ErrEmpty):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.log(r).Error().Err(err).Str("user_id", user.ID).Msg("save avatar failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	updated, previous, err := s.Users.SetAvatar(r.Context(), user.ID, &url)
	if err != nil || updated == nil {
		if err != nil {
			s.log(r).Error().Err(err).Str("user_id", user.ID).Msg("store avatar url failed")
		}
		if previous == nil || *previous != url {
			_ = s.Avatars.Remove(url)
		}
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.removeAvatarFile(r, previous, url)

	s.recordAudit(r, audit.Entry{
		Action:     audit.ActionAvatarUpload,
		ResourceID: user.ID,
		UserID:     user.ID,
		OldValues:  map[string]any{"avatar_url": previous},
		NewValues:  map[string]any{"avatar_url": url},
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Avatar uploaded successfully",
		"avatar_url": url,
	})
}

func (s *Server) handleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	updated, previous, err := s.Users.SetAvatar(r.Context(), user.ID, nil)
	if err != nil {
		s.log(r).Error().Err(err).Str("user_id", user.ID).Msg("clear avatar failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	s.removeAvatarFile(r, previous, "")

	if previous != nil {
		s.recordAudit(r, audit.Entry{
			Action:     audit.ActionAvatarDelete,
			ResourceID: user.ID,
			UserID:     user.ID,
			OldValues:  map[string]any{"avatar_url": *previous},
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Avatar deleted successfully"})
}

// removeAvatarFile deletes the replaced file unless it is the one now in use.
func (s *Server) removeAvatarFile(r *http.Request, previous *string, current string) {
	if previous == nil || *previous == "" || *previous == current {
		return
	}
	if err := s.Avatars.Remove(*previous); err != nil {
		s.log(r).Warn().Err(err).Str("avatar_url", *previous).Msg("remove old avatar failed")
	}
}

// handleAvatarFile serves stored avatars; directory listings are not exposed.
func (s *Server) handleAvatarFile(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	http.StripPrefix(avatar.URLPrefix, http.FileServer(http.Dir(s.Avatars.Dir()))).ServeHTTP(w, r)
}

func profileValues(u *auth.User, c auth.ProfileChanges) map[string]any {
	values := map[string]any{}
	if c.Name != nil {
		values["name"] = u.Name
	}
	if c.Phone != nil {
		values["phone"] = u.Phone
	}
	if c.Timezone != nil {
		values["timezone"] = u.Timezone
	}
	if c.Locale != nil {
		values["locale"] = u.Locale
	}
	if c.Preferences != nil {
		values["preferences"] = u.Preferences
	}
	if c.Role != nil {
		values["role"] = u.Role
	}
	return values
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
