package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/budgetapp/budget-api/internal/domain/models"
	"github.com/go-playground/validator/v10"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user models.User)

// authenticate resolves the bearer token before calling next. A missing or
// malformed header answers "Not authenticated"; any token failure answers
// "Could not validate credentials". The precise reason is only logged.
func (s *APIServer) authenticate(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.logger.With(slog.String("request_id", getRequestID(r.Context())))

		tokenHeader := r.Header.Get("Authorization")
		if tokenHeader == "" {
			log.Warn("authorization header missing")
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		parts := strings.Split(tokenHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			log.Warn("malformed authorization header")
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		user, err := s.auth.Authenticate(r.Context(), parts[1])
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		next(w, r, user)
	}
}

func (s *APIServer) registerHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, validationDetail(err))
			return
		}

		user, err := s.auth.Register(r.Context(), req.Email, req.Username, req.Password)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

// loginHandler accepts the OAuth2 password form: username and password as
// application/x-www-form-urlencoded fields.
func (s *APIServer) loginHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Invalid form body")
			return
		}

		username := r.PostForm.Get("username")
		password := r.PostForm.Get("password")

		var missing []string
		if username == "" {
			missing = append(missing, "username")
		}
		if password == "" {
			missing = append(missing, "password")
		}
		if len(missing) > 0 {
			writeError(w, http.StatusUnprocessableEntity, "Missing form fields: "+strings.Join(missing, ", "))
			return
		}

		token, err := s.auth.Login(r.Context(), username, password)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, token)
	}
}

func (s *APIServer) meHandler() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user models.User) {
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *APIServer) deleteAccountHandler() authedHandler {
	return func(w http.ResponseWriter, r *http.Request, user models.User) {
		if err := s.auth.DeleteAccount(r.Context(), user); err != nil {
			s.handleError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// validationDetail flattens validator errors into one readable line.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s=%s'", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
