// Package providers contributes the school's capabilities and resources
// to the registry: finance (invoices, payments), academic (programmes,
// courses), attendance (registers, summaries), student (timetable, the
// ask-tutor assistant), and system (ping, whoami, capability listing,
// resource reads).
//
// Each provider is a handler struct over the Store plus a Register
// function that declares descriptors with their scopes and schemas.
package providers
