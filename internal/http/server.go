package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kinderlink/child-profile/internal/auth"
	"kinderlink/child-profile/internal/clients"
	"kinderlink/child-profile/internal/config"
	"kinderlink/child-profile/internal/linking"
)

type Server struct {
	cfg    config.Config
	db     *clients.DBInteract
	codes  *linking.Codec
	logger *zap.Logger
}

func NewServer(cfg config.Config, db *clients.DBInteract, codes *linking.Codec, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, db: db, codes: codes, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(s.authMiddleware).Post("/profiles/children", s.handleCreateChild)
	r.With(s.authMiddleware).Post("/profiles/children/link-supervisor", s.handleLinkSupervisor)
	r.With(s.authMiddleware).Get("/profiles/children", s.handleListChildren)
	r.With(s.authMiddleware).Get("/profiles/children/{childId}", s.handleGetChild)
	r.With(s.authMiddleware).Put("/profiles/children/{childId}", s.handleUpdateChild)

	return r
}

// Auth

// identity is the authenticated caller: parsed claims plus the raw bearer
// token, kept for passthrough to DB-Interact.
type identity struct {
	claims *auth.Claims
	token  string
}

type identityKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeMessage(w, http.StatusUnauthorized, "Token is missing")
			return
		}
		claims, err := auth.ParseAccessToken(s.cfg.JWTSecret, token)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, authFailureMessage(err))
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, identity{claims: claims, token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "Access token has expired"
	case errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token type provided (expected access)"
	case errors.Is(err, auth.ErrMalformedClaims):
		return "Invalid token payload"
	default:
		return "Access token is invalid"
	}
}

func identityFromContext(ctx context.Context) identity {
	caller, _ := ctx.Value(identityKey{}).(identity)
	return caller
}

// Handlers

type createChildRequest struct {
	Name      string   `json:"name"`
	Birthday  string   `json:"birthday"`
	Group     string   `json:"group"`
	Allergies []string `json:"allergies"`
	Notes     string   `json:"notes"`
}

func (s *Server) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	caller := identityFromContext(r.Context())
	if caller.claims.Role != "parent" {
		writeMessage(w, http.StatusForbidden, "Forbidden: Only parents can add children")
		return
	}

	var req createChildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Birthday == "" {
		writeMessage(w, http.StatusBadRequest, "Missing required fields: name, birthday")
		return
	}

	resp, err := s.db.CreateChild(r.Context(), caller.token, clients.ChildPayload{
		Name:      req.Name,
		Birthday:  req.Birthday,
		Group:     req.Group,
		Allergies: req.Allergies,
		Notes:     req.Notes,
	})
	if err != nil {
		s.backendError(w, "create child", err)
		return
	}
	if resp.Status != http.StatusCreated {
		writeMessage(w, resp.Status, "Failed to create child profile via database service. Reason: "+resp.Message())
		return
	}

	var created struct {
		ChildID string `json:"child_id"`
	}
	if err := json.Unmarshal(resp.Body, &created); err != nil || created.ChildID == "" {
		s.logger.Error("db-interact created child but returned no child_id")
		writeMessage(w, http.StatusInternalServerError, "Child profile created, but failed to get ID")
		return
	}

	code, err := s.codes.Generate(created.ChildID)
	if err != nil {
		// The child record exists upstream at this point; the message has to
		// say so rather than present a clean failure.
		s.logger.Error("linking code generation failed",
			zap.String("child_id", created.ChildID),
			zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Child profile created, but linking code generation failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message":      "Child profile added successfully",
		"child_id":     created.ChildID,
		"linking_code": code,
	})
}

func (s *Server) handleLinkSupervisor(w http.ResponseWriter, r *http.Request) {
	caller := identityFromContext(r.Context())
	if caller.claims.Role != "teacher" {
		writeMessage(w, http.StatusForbidden, "Forbidden: Only supervisors can link using a code")
		return
	}

	var req struct {
		LinkingCode string `json:"linking_code"`
	}
	if err := decodeJSON(r, &req); err != nil || req.LinkingCode == "" {
		writeMessage(w, http.StatusBadRequest, "Missing 'linking_code' in request body")
		return
	}

	childID, err := s.codes.Verify(req.LinkingCode)
	if err != nil {
		// One message for every verification failure so the response does not
		// reveal whether the code was tampered with or merely expired.
		writeMessage(w, http.StatusBadRequest, "Invalid or expired linking code")
		return
	}

	resp, err := s.db.LinkSupervisor(r.Context(), caller.token, childID, caller.claims.Subject)
	if err != nil {
		s.backendError(w, "link supervisor", err)
		return
	}
	switch resp.Status {
	case http.StatusOK:
		writeJSON(w, http.StatusOK, map[string]string{
			"message":  "Supervisor linked successfully",
			"child_id": childID,
		})
	case http.StatusNotFound:
		writeMessage(w, http.StatusNotFound, "Failed to link supervisor: Child not found")
	default:
		writeMessage(w, resp.Status, "Failed to link supervisor via database service. Reason: "+resp.Message())
	}
}

func (s *Server) handleGetChild(w http.ResponseWriter, r *http.Request) {
	caller := identityFromContext(r.Context())
	resp, err := s.db.GetChild(r.Context(), caller.token, chi.URLParam(r, "childId"))
	if err != nil {
		s.backendError(w, "get child", err)
		return
	}
	relay(w, resp)
}

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request) {
	caller := identityFromContext(r.Context())
	resp, err := s.db.ListChildren(r.Context(), caller.token)
	if err != nil {
		s.backendError(w, "list children", err)
		return
	}
	relay(w, resp)
}

func (s *Server) handleUpdateChild(w http.ResponseWriter, r *http.Request) {
	caller := identityFromContext(r.Context())
	childID := chi.URLParam(r, "childId")

	var fields json.RawMessage
	if err := decodeJSON(r, &fields); err != nil || emptyPayload(fields) {
		writeMessage(w, http.StatusBadRequest, "Missing request body")
		return
	}

	// DB-Interact owns the ownership relation, so ask it first: a read as the
	// caller doubles as the authorization check for the mutation.
	authz, err := s.db.GetChild(r.Context(), caller.token, childID)
	if err != nil {
		s.backendError(w, "update authorization check", err)
		return
	}
	if !authz.OK() {
		relay(w, authz)
		return
	}

	resp, err := s.db.UpdateChild(r.Context(), caller.token, childID, fields)
	if err != nil {
		s.backendError(w, "update child", err)
		return
	}
	relay(w, resp)
}

func (s *Server) backendError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, clients.ErrUnavailable) {
		s.logger.Error("db-interact unreachable", zap.String("op", op), zap.Error(err))
		writeMessage(w, http.StatusServiceUnavailable, "Error communicating with database service")
		return
	}
	s.logger.Error("unexpected gateway error", zap.String("op", op), zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, "An internal server error occurred")
}

// relay forwards a DB-Interact reply to the caller: status unchanged, JSON
// bodies passed through, non-JSON bodies wrapped as a message.
func relay(w http.ResponseWriter, resp *clients.Response) {
	if payload, ok := resp.JSON(); ok {
		writeJSON(w, resp.Status, payload)
		return
	}
	writeMessage(w, resp.Status, strings.TrimSpace(string(resp.Body)))
}

func emptyPayload(fields json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(fields))
	return trimmed == "" || trimmed == "null" || trimmed == "{}"
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
