package engine

import (
	"fmt"

	"canteen-backend/internal/schema"
)

// Authorize decides whether the principal may perform action on the entity.
// For read/update/delete, row is the fetched target row and ownership is
// checked against its created_by; for create, row is nil.
//
// Rule precedence, first match wins: public, then admin (principal must be
// admin), then authenticated (principal must be present), then own
// (principal must be present and own the row; admins satisfy own for any
// row). A missing rule denies the action outright.
func Authorize(p *Principal, e *schema.Entity, action string, row map[string]any) *AppError {
	rule := e.Rule(action)
	if rule == nil {
		return ForbiddenError(fmt.Sprintf("Action '%s' not allowed for this entity", action))
	}

	if rule.Public {
		return nil
	}
	if rule.Admin && p.IsAdmin() {
		return nil
	}
	if rule.Authenticated && p != nil {
		return nil
	}
	if rule.Own && p != nil {
		if p.IsAdmin() || ownsRow(p, row) {
			return nil
		}
	}

	if p == nil {
		return UnauthorizedError("Authentication required")
	}
	return ForbiddenError("Permission denied")
}

// AuthorizeList decides whether the principal may list the entity and
// whether results must be restricted to rows the principal created.
// Admins are never restricted.
func AuthorizeList(p *Principal, e *schema.Entity) (restrictToOwner bool, appErr *AppError) {
	rule := e.Rule(schema.ActionList)
	if rule == nil {
		return false, ForbiddenError("List operation not allowed for this entity")
	}

	if rule.Public {
		return false, nil
	}
	if rule.Admin && p.IsAdmin() {
		return false, nil
	}
	if rule.Authenticated && p != nil {
		return false, nil
	}
	if rule.Own && p != nil {
		return !p.IsAdmin(), nil
	}

	if p == nil {
		return false, UnauthorizedError("Authentication required")
	}
	return false, ForbiddenError("Permission denied")
}

func ownsRow(p *Principal, row map[string]any) bool {
	if row == nil {
		return false
	}
	createdBy, _ := row["created_by"].(string)
	return createdBy != "" && createdBy == p.Email
}
