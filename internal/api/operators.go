package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/scanctl/internal/audit"
	"github.com/nerrad567/scanctl/internal/auth"
	"github.com/nerrad567/scanctl/internal/console"
)

// minPasswordLength is the shortest password accepted for operator accounts.
const minPasswordLength = 8

// ─── Request/Response Types ────────────────────────────────────────

type createOperatorRequest struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Password    string    `json:"password"`
	Role        auth.Role `json:"role"`
}

type updateOperatorRequest struct {
	DisplayName *string    `json:"display_name,omitempty"`
	Role        *auth.Role `json:"role,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListOperators returns all operator accounts.
func (s *Server) handleListOperators(w http.ResponseWriter, r *http.Request) {
	ops, err := s.operators.List(r.Context())
	if err != nil {
		s.logger.Error("list operators failed", "error", err)
		writeInternalError(w, "failed to list operators")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"operators": ops,
		"count":     len(ops),
	})
}

// handleCreateOperator creates a new operator account.
func (s *Server) handleCreateOperator(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Username == "" || req.Password == "" || req.DisplayName == "" {
		writeBadRequest(w, "username, password, and display_name are required")
		return
	}
	if !auth.IsValidUsername(req.Username) {
		writeBadRequest(w, "username may contain letters, digits, dots, hyphens and underscores")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}
	if req.Role == "" {
		req.Role = auth.RoleOperator
	}
	if !auth.IsValidRole(req.Role) {
		writeBadRequest(w, "invalid role: must be viewer, operator, or admin")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to create operator")
		return
	}

	claims := claimsFromContext(r.Context())
	op := &auth.Operator{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Role:         req.Role,
		IsActive:     true,
		CreatedBy:    claims.Subject,
	}

	if err := s.operators.Create(r.Context(), op); err != nil {
		s.writeDomainError(w, "create operator", err)
		return
	}

	s.logger.Info("operator created", "operator_id", op.ID, "username", op.Username, "role", op.Role, "created_by", claims.Username)
	s.auditOperator(r.Context(), actorFromRequest(r), audit.ActionRegister, op.ID, map[string]any{
		"username": op.Username,
		"role":     op.Role,
	})

	writeJSON(w, http.StatusCreated, op)
}

// handleGetOperator returns a single operator by ID.
func (s *Server) handleGetOperator(w http.ResponseWriter, r *http.Request) {
	op, err := s.operators.GetByID(r.Context(), pathParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, "get operator", err)
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// handleUpdateOperator modifies an operator's mutable fields.
func (s *Server) handleUpdateOperator(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	claims := claimsFromContext(r.Context())

	var req updateOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	op, err := s.operators.GetByID(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, "get operator", err)
		return
	}

	// Self-protection: an admin cannot lock themselves out.
	if req.IsActive != nil && !*req.IsActive && id == claims.Subject {
		writeForbidden(w, "cannot deactivate your own account")
		return
	}
	if req.Role != nil && id == claims.Subject && *req.Role != claims.Role {
		writeForbidden(w, "cannot change your own role")
		return
	}
	if req.Role != nil && !auth.IsValidRole(*req.Role) {
		writeBadRequest(w, "invalid role: must be viewer, operator, or admin")
		return
	}

	details := make(map[string]any)
	if req.DisplayName != nil {
		op.DisplayName = *req.DisplayName
		details["display_name"] = op.DisplayName
	}
	if req.Role != nil {
		op.Role = *req.Role
		details["role"] = op.Role
	}
	if req.IsActive != nil {
		op.IsActive = *req.IsActive
		details["is_active"] = op.IsActive
	}

	if err := s.operators.Update(r.Context(), op); err != nil {
		s.writeDomainError(w, "update operator", err)
		return
	}

	s.logger.Info("operator updated", "operator_id", id, "updated_by", claims.Username)
	s.auditOperator(r.Context(), actorFromRequest(r), audit.ActionUpdate, id, details)

	writeJSON(w, http.StatusOK, op)
}

// handleDeleteOperator removes an operator account.
func (s *Server) handleDeleteOperator(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	claims := claimsFromContext(r.Context())

	if id == claims.Subject {
		writeForbidden(w, "cannot delete your own account")
		return
	}

	op, err := s.operators.GetByID(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, "get operator", err)
		return
	}

	if err := s.operators.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, "delete operator", err)
		return
	}

	s.logger.Info("operator deleted", "operator_id", id, "deleted_by", claims.Username)
	s.auditOperator(r.Context(), actorFromRequest(r), audit.ActionUnregister, id, map[string]any{
		"username": op.Username,
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleChangePassword lets any authenticated operator change their own password.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.NewPassword) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}

	if _, err := auth.Authenticate(r.Context(), s.operators, claims.Username, req.CurrentPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrOperatorInactive) {
			writeUnauthorized(w, "current password is incorrect")
			return
		}
		s.writeDomainError(w, "change password", err)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to change password")
		return
	}
	if err := s.operators.UpdatePassword(r.Context(), claims.Subject, hash); err != nil {
		s.writeDomainError(w, "change password", err)
		return
	}

	s.auditOperator(r.Context(), actorFromRequest(r), audit.ActionUpdate, claims.Subject, map[string]any{
		"password": "changed",
	})
	w.WriteHeader(http.StatusNoContent)
}

// auditOperator records an operator account change. Best effort: failures
// are logged and the request still succeeds.
func (s *Server) auditOperator(ctx context.Context, actor console.Actor, action, id string, details map[string]any) {
	repo := s.console.Audit()
	if repo == nil {
		return
	}
	entry := &audit.AuditLog{
		Action:     action,
		EntityType: audit.EntityOperator,
		EntityID:   id,
		Operator:   actor.Operator,
		Source:     actor.Source,
		Details:    details,
	}
	if err := repo.Create(ctx, entry); err != nil {
		s.logger.Error("audit log write failed", "action", action, "entity_type", audit.EntityOperator, "error", err)
	}
}
