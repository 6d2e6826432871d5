package session

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/emailutil"
	"github.com/microcosm-cc/bluemonday"
)

// minPasswordLength matches the backend's own check
const minPasswordLength = 6

// RequestPasswordReset asks the backend to email reset instructions and
// returns its message
func (s *Session) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = emailutil.Normalize(email)
	if !emailutil.Valid(email) {
		return "", fmt.Errorf("invalid email address")
	}
	resp, err := s.deps.Backend.ForgotPassword(ctx, email)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResetPassword completes a reset with the token from the email
func (s *Session) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (string, error) {
	switch {
	case strings.TrimSpace(token) == "":
		return "", fmt.Errorf("reset token is required")
	case newPassword != confirmPassword:
		return "", fmt.Errorf("passwords do not match")
	case len(newPassword) < minPasswordLength:
		return "", fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}

	resp, err := s.deps.Backend.ResetPassword(ctx, backend.PasswordReset{
		Token:           strings.TrimSpace(token),
		NewPassword:     newPassword,
		ConfirmPassword: confirmPassword,
	})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// SaveProfile sends profile changes to the backend and folds them into the
// current user. Markup is stripped from every field first; fields over the
// backend's limits are rejected with a *backend.ValidationError.
func (s *Session) SaveProfile(ctx context.Context, update backend.ProfileUpdate) (*backend.User, error) {
	if update.Empty() {
		return nil, fmt.Errorf("no profile fields to update")
	}
	token := s.token(ctx)
	if token == "" {
		return nil, ErrNotSignedIn
	}

	update = sanitizeProfile(update)
	if err := update.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.deps.Backend.UpdateProfile(ctx, token, update); err != nil {
		if backend.IsUnauthorized(err) {
			s.purge(ctx, "unauthorized")
		}
		return nil, err
	}

	u := s.User()
	if u == nil {
		return s.Refresh(ctx)
	}
	update.Apply(u)
	if err := s.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func sanitizeProfile(p backend.ProfileUpdate) backend.ProfileUpdate {
	policy := bluemonday.StrictPolicy()
	// Sanitize escapes entities in the text it keeps; the backend stores plain text.
	clean := func(v *string) *string {
		if v == nil {
			return nil
		}
		out := strings.TrimSpace(html.UnescapeString(policy.Sanitize(*v)))
		return &out
	}
	return backend.ProfileUpdate{
		FirstName:    clean(p.FirstName),
		LastName:     clean(p.LastName),
		MobileNumber: clean(p.MobileNumber),
		Company:      clean(p.Company),
		JobTitle:     clean(p.JobTitle),
		Location:     clean(p.Location),
		Bio:          clean(p.Bio),
	}
}
