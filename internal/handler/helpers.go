package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidtube-server/internal/domain"
	"vidtube-server/internal/logging"
	"vidtube-server/internal/middleware"
	"vidtube-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

const (
	refreshTokenCookie = "refreshToken"
	maxJSONBodyBytes   = 1 << 20
)

// CookieOptions controls the session cookies set on login and refresh.
type CookieOptions struct {
	Secure        bool
	SameSite      http.SameSite
	Domain        string
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

func (o CookieOptions) set(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, o.cookie(middleware.AccessTokenCookie, accessToken, int(o.AccessMaxAge.Seconds())))
	http.SetCookie(w, o.cookie(refreshTokenCookie, refreshToken, int(o.RefreshMaxAge.Seconds())))
}

func (o CookieOptions) clear(w http.ResponseWriter) {
	http.SetCookie(w, o.cookie(middleware.AccessTokenCookie, "", -1))
	http.SetCookie(w, o.cookie(refreshTokenCookie, "", -1))
}

func (o CookieOptions) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   o.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Wrap(domain.ErrValidation, "invalid request body", err)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.Wrap(domain.ErrValidation, "invalid request body", err)
	}
	return nil
}

func validate(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Wrap(domain.ErrValidation, "invalid request", err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required", "required_without":
			messages = append(messages, field+" is required")
		case "email":
			messages = append(messages, field+" must be a valid email")
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return domain.Wrap(domain.ErrValidation, strings.Join(messages, "; "), err)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := response.FromError(w, err)

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
		return
	}
	logger.Debug("request rejected", "status", status, "error", err)
}
