// Package auth provides authentication and authorization for the gateway.
//
// # Authentication
//
// Clients authenticate with HS256-signed JWT credentials. The verifier
// turns a raw credential into an Identity: actor id (sub claim), role, and
// a granted scope set. When a token carries no explicit scopes claim, the
// role's default scope set applies. One Identity is constructed per
// request and discarded when the response is produced.
//
// # Authorization
//
// Scopes are strings of the form "family:name". A check passes when the
// identity holds the super wildcard "*", the exact scope, or the family
// wildcard "family:*". The scope gate is pure:
//
//	auth.HasScope(ident, "finance:invoices")
//	auth.RequireAll(ident, descriptor.RequiredScopes)
//
// Failed checks return a *ScopeError naming the actor and missing scopes.
//
// The dispatcher passes the verified Identity to every handler and fetch
// function explicitly; nothing is smuggled through the context.
package auth
