// ABOUTME: Pure authorization predicates over an Identity and required scopes
// ABOUTME: Supports the super wildcard and per-family wildcard scopes

package auth

import (
	"fmt"
	"strings"
)

// ScopeWildcard satisfies every scope check unconditionally. It is never
// granted implicitly; it must appear in the verified identity's scope set.
const ScopeWildcard = "*"

// ScopeError reports a failed authorization check. It names the actor and
// the scopes that were required but absent.
type ScopeError struct {
	Actor   string
	Missing []string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("actor %q missing required scope(s): %s", e.Actor, strings.Join(e.Missing, ", "))
}

// HasScope reports whether the identity holds the given scope. A scope is
// held when the identity carries the super wildcard, the exact scope, or
// the scope family's wildcard (e.g. "finance:*" covers "finance:invoices").
func HasScope(ident *Identity, scope string) bool {
	family := scopeFamily(scope)
	for _, held := range ident.Scopes {
		if held == ScopeWildcard || held == scope {
			return true
		}
		if family != "" && held == family+":*" {
			return true
		}
	}
	return false
}

// RequireScope is HasScope with an error result carrying the missing scope
// and the actor id.
func RequireScope(ident *Identity, scope string) error {
	if HasScope(ident, scope) {
		return nil
	}
	return &ScopeError{Actor: ident.Actor, Missing: []string{scope}}
}

// HasAny reports whether the identity holds at least one of the scopes.
// An empty scope set is trivially satisfied.
func HasAny(ident *Identity, scopes []string) bool {
	if len(scopes) == 0 {
		return true
	}
	for _, s := range scopes {
		if HasScope(ident, s) {
			return true
		}
	}
	return false
}

// HasAll reports whether the identity holds every one of the scopes.
func HasAll(ident *Identity, scopes []string) bool {
	for _, s := range scopes {
		if !HasScope(ident, s) {
			return false
		}
	}
	return true
}

// RequireAll is HasAll with an error result listing every missing scope.
func RequireAll(ident *Identity, scopes []string) error {
	var missing []string
	for _, s := range scopes {
		if !HasScope(ident, s) {
			missing = append(missing, s)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ScopeError{Actor: ident.Actor, Missing: missing}
}

// scopeFamily returns the family prefix of a scope ("finance" for
// "finance:invoices"), or "" when the scope has no family separator.
func scopeFamily(scope string) string {
	if i := strings.Index(scope, ":"); i > 0 {
		return scope[:i]
	}
	return ""
}
