// Package tenant implements multi-tenant identity and request-time tenant
// resolution.
//
// A Tenant is identified primarily by an opaque app key, generated once at
// creation and immutable afterwards. A legacy domain column supports exact
// and single-level wildcard matching ("*.example.com") for older frontends
// that cannot send an app key.
//
// The Resolver walks an ordered strategy chain per request and stops at the
// first strategy that yields an active tenant:
//
//  1. X-App-Key header (primary)
//  2. X-Tenant-Key header (compatibility alias)
//  3. The authenticated bearer token's owning user, taking the first tenant
//     that user administers
//  4. Request host, exact then wildcard domain match
//  5. Origin header host, same matching rule
//  6. X-Tenant-Domain header (lowest-priority override)
//
// Inactive tenants never match; a strategy that hits an inactive row falls
// through to the next strategy rather than aborting resolution. Callers that
// want a hard "tenant account is not active" failure for app-key clients use
// LookupByAppKey, which returns inactive rows too.
package tenant
