// Package aggregate assembles role-scoped context bundles from registered
// resources.
//
// Each role maps to a fixed, explicit list of resource URIs. Aggregate
// fetches every resource in the list concurrently with all-settled
// semantics: a failing, slow, or unparseable resource contributes a nil
// bundle entry and never aborts or delays its siblings beyond the slowest
// fetch. Render then turns a bundle into one labelled document, keeping
// sections for unavailable resources so consumers can see what was
// attempted.
package aggregate
