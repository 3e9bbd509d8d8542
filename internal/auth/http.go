// Copyright (c) 2026 Aegis. All rights reserved.
// Author: m.krogh.dev@gmail.com

// HTTP delivery layer for the credential lifecycle use cases.
//
// # Architecture
//
// Handlers act as the "gatekeepers" to the system. They are responsible for:
//   - JSON request parsing and fast-fail input checks.
//   - Mapping HTTP contexts to service layer method calls.
//   - Standardizing JSON response formats via the [respond] package.
//
// They contain NO business logic or database queries.

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkrogh/aegis/internal/platform/constants"
	"github.com/mkrogh/aegis/internal/platform/middleware"
	requestutil "github.com/mkrogh/aegis/internal/platform/request"
	"github.com/mkrogh/aegis/internal/platform/respond"
)

// Handler implements the authentication HTTP endpoints.
type Handler struct {
	authService   *Service
	secureCookies bool
}

// NewHandler constructs a new [Handler] with its service dependency.
// secureCookies should be true everywhere except local development.
func NewHandler(service *Service, secureCookies bool) *Handler {
	return &Handler{authService: service, secureCookies: secureCookies}
}

// Routes returns a [chi.Router] configured with the auth endpoints.
//
// # Endpoints
//   - POST /register/start          : Sends an enrollment challenge code.
//   - POST /register/verify         : Completes enrollment, returns tokens.
//   - POST /login                   : Authenticates, returns tokens.
//   - POST /refresh                 : Rotates a refresh token.
//   - POST /logout                  : Revokes all sessions (auth required).
//   - POST /password/request-reset  : Starts password recovery.
//   - POST /password/verify-code    : Exchanges a reset code for a token.
//   - POST /password/reset          : Commits the new password.
//   - GET  /me                      : Returns the caller's profile (auth).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register/start", handler.registerStart)
	router.Post("/register/verify", handler.registerVerify)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/password/request-reset", handler.requestReset)
	router.Post("/password/verify-code", handler.verifyResetCode)
	router.Post("/password/reset", handler.resetPassword)

	router.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth)
		protected.Post("/logout", handler.logout)
		protected.Get("/me", handler.me)
	})

	return router
}

// sessionMeta extracts the request metadata persisted with refresh records.
func sessionMeta(request *http.Request) SessionMeta {
	return SessionMeta{
		UserAgent: request.UserAgent(),
		IPAddress: middleware.RealIP(request),
	}
}

// setRefreshCookie mirrors the refresh token into an HttpOnly cookie for
// browser clients. API clients can ignore it and use the JSON field.
func (handler *Handler) setRefreshCookie(writer http.ResponseWriter, pair TokenPair) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    pair.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  pair.RefreshTokenExpiresAt,
		HttpOnly: true,
		Secure:   handler.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie expires the refresh cookie on logout.
func (handler *Handler) clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   handler.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// # Registration

type registerStartRequest struct {
	Email string `json:"email"`
}

// registerStart handles POST /api/v1/auth/register/start.
func (handler *Handler) registerStart(writer http.ResponseWriter, request *http.Request) {
	var input registerStartRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RegisterStart(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Accepted(writer, map[string]string{
		constants.FieldMessage: "Verification code sent",
	})
}

type registerVerifyRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
}

// registerVerify handles POST /api/v1/auth/register/verify.
//
// # Returns
//   - HTTP 201 Created with the new user profile and token pair.
//   - HTTP 401/404/429 for challenge failures (wrong code, expired, exhausted).
func (handler *Handler) registerVerify(writer http.ResponseWriter, request *http.Request) {
	var input registerVerifyRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.RegisterVerify(request.Context(), RegisterInput{
		Email:       input.Email,
		Code:        input.Code,
		Password:    input.Password,
		DisplayName: input.DisplayName,
		Phone:       input.Phone,
		Meta:        sessionMeta(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, result.Tokens)
	respond.Created(writer, result)
}

// # Sessions

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login handles POST /api/v1/auth/login.
//
// # Returns
//   - HTTP 200 OK with the user profile and token pair.
//   - HTTP 401 Unauthorized for bad credentials, without leaking whether the
//     address or the password was wrong.
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
		Meta:     sessionMeta(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, result.Tokens)
	respond.OK(writer, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// refresh handles POST /api/v1/auth/refresh.
//
// The raw token is read from the JSON body, falling back to the HttpOnly
// cookie for browser clients.
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	var input refreshRequest
	_ = requestutil.DecodeJSON(request, &input)

	rawToken := input.RefreshToken
	if rawToken == "" {
		if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil {
			rawToken = cookie.Value
		}
	}

	pair, err := handler.authService.Refresh(request.Context(), rawToken, sessionMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setRefreshCookie(writer, *pair)
	respond.OK(writer, pair)
}

// logout handles POST /api/v1/auth/logout. Requires authentication.
// Revokes every active refresh record for the caller.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearRefreshCookie(writer)
	respond.NoContent(writer)
}

// me handles GET /api/v1/auth/me. Requires authentication.
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.authService.Me(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Password Recovery

type requestResetRequest struct {
	Email  string `json:"email"`
	Method string `json:"method,omitempty"` // "code" (default) or "link"
}

// requestReset handles POST /api/v1/auth/password/request-reset.
// Always acknowledges with 202, whether or not the address is registered.
func (handler *Handler) requestReset(writer http.ResponseWriter, request *http.Request) {
	var input requestResetRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	method := ResetMethodCode
	if input.Method == string(ResetMethodLink) {
		method = ResetMethodLink
	}

	if err := handler.authService.RequestPasswordReset(request.Context(), input.Email, method); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Accepted(writer, map[string]string{
		constants.FieldMessage: "If the address is registered, instructions have been sent",
	})
}

type verifyResetCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// verifyResetCode handles POST /api/v1/auth/password/verify-code.
func (handler *Handler) verifyResetCode(writer http.ResponseWriter, request *http.Request) {
	var input verifyResetCodeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	token, err := handler.authService.VerifyResetCode(request.Context(), input.Email, input.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"reset_token": token})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// resetPassword handles POST /api/v1/auth/password/reset.
// Accepts either an exchange token (code flow) or a link token.
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Token, input.NewPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		constants.FieldMessage: "Password has been reset",
	})
}
