// Package registry provides the catalogue of capability descriptors and
// resources contributed by providers.
//
// A capability is a named, scope-guarded operation ("finance:list_invoices")
// with a JSON schema for its input and a handler. A resource is a named,
// scope-guarded readable document ("mycastle://finance/invoices") whose
// contents are returned wrapped in a typed content item.
//
// Every invocable capability requires at least one scope unless it is
// explicitly marked scope-exempt (the liveness probe and the capability
// listing). Registration happens once at startup from the composition
// root; all lookups afterwards are read-only and safe for concurrent use.
package registry
