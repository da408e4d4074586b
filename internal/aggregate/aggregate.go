// ABOUTME: Role-indexed context aggregator: concurrent resource fan-out with failure isolation
// ABOUTME: Folds per-role resource reads into one bundle for prompt construction

package aggregate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
)

// Bundle maps resource URI to parsed contents. A nil value marks a
// resource that was attempted but unavailable; callers must tolerate it.
type Bundle map[string]json.RawMessage

// defaultResourceSets fixes, per role, which resources the aggregator
// reads. The mapping is explicit and closed: roles not listed get nothing.
var defaultResourceSets = map[auth.Role][]string{
	auth.RoleSuperAdmin: {
		"mycastle://finance/invoices",
		"mycastle://finance/outstanding",
		"mycastle://academic/programmes",
		"mycastle://academic/courses",
		"mycastle://attendance/registers",
		"mycastle://student/timetable",
	},
	auth.RoleAdmin: {
		"mycastle://finance/invoices",
		"mycastle://finance/outstanding",
		"mycastle://academic/programmes",
		"mycastle://attendance/registers",
	},
	auth.RoleAdminDOS: {
		"mycastle://academic/programmes",
		"mycastle://academic/courses",
	},
	auth.RoleAdminReception: {
		"mycastle://attendance/registers",
		"mycastle://student/timetable",
	},
	auth.RoleAdminSales: {
		"mycastle://finance/invoices",
		"mycastle://finance/outstanding",
	},
	auth.RoleTeacher: {
		"mycastle://academic/courses",
		"mycastle://attendance/registers",
	},
	auth.RoleTeacherDOS: {
		"mycastle://academic/programmes",
		"mycastle://academic/courses",
		"mycastle://attendance/registers",
	},
	auth.RoleStudent: {
		"mycastle://student/timetable",
		"mycastle://academic/courses",
	},
}

// ResourceSet returns the fixed resource list for a role, in declared
// order. Unknown roles get an empty list.
func ResourceSet(role auth.Role) []string {
	set := defaultResourceSets[role]
	out := make([]string, len(set))
	copy(out, set)
	return out
}

// Aggregator reads a role-specific set of resources from the registry's
// providers and folds them into a Bundle.
type Aggregator struct {
	registry *registry.Registry
	sets     map[auth.Role][]string
	logger   *slog.Logger
}

// New creates an Aggregator using the default role-to-resource mapping.
func New(reg *registry.Registry, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{registry: reg, sets: defaultResourceSets, logger: logger}
}

// Aggregate concurrently fetches every resource in the identity's role
// set. Each fetch is isolated: one failure neither aborts nor delays the
// others and never fails the aggregate call. The bundle has one entry per
// attempted resource, nil for unavailable ones.
func (a *Aggregator) Aggregate(ctx context.Context, ident *auth.Identity) Bundle {
	uris := a.sets[ident.Role]

	results := make([]json.RawMessage, len(uris))
	var wg sync.WaitGroup
	for i, uri := range uris {
		wg.Add(1)
		go func(i int, uri string) {
			defer wg.Done()
			results[i] = a.fetchOne(ctx, uri, ident)
		}(i, uri)
	}
	wg.Wait()

	bundle := make(Bundle, len(uris))
	for i, uri := range uris {
		bundle[uri] = results[i]
	}
	return bundle
}

// fetchOne reads and parses a single resource, returning nil on any
// failure (unknown URI, missing scope, fetch error, unparseable payload).
func (a *Aggregator) fetchOne(ctx context.Context, uri string, ident *auth.Identity) json.RawMessage {
	res := a.registry.LookupResource(uri)
	if res == nil {
		a.logger.Warn("aggregate: resource not registered", "uri", uri)
		return nil
	}
	if !auth.HasAll(ident, res.RequiredScopes) {
		a.logger.Debug("aggregate: identity lacks resource scope", "uri", uri, "actor", ident.Actor)
		return nil
	}

	content, err := res.Fetch(ctx, ident)
	if err != nil {
		a.logger.Warn("aggregate: resource fetch failed", "uri", uri, "error", err)
		return nil
	}

	payload := json.RawMessage(content.Text)
	if !json.Valid(payload) {
		a.logger.Warn("aggregate: resource payload is not valid JSON", "uri", uri)
		return nil
	}
	return payload
}
