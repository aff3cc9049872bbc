// Package httputil provides HTTP utilities for standardized request and
// response handling across the API.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, data)
//	httputil.WriteCreated(w, resource)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "Token expired")
//	httputil.WriteForbidden(w, "Insufficient permissions")
//	httputil.WriteUnprocessableEntity(w, "Validation failed", fields)
//
// # Request Parsing
//
// JSON parsing:
//
//	var req loginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // error response already written
//	}
//
// Path and query parameters:
//
//	id, ok := httputil.ParsePathStringOrError(w, r, "id")
//	page, err := httputil.ParseQueryInt(r, "page", 1)
//	search := httputil.ParseQueryString(r, "search", "")
//
// # Middleware
//
// The server wraps its router with CORS and a body-size cap; the embedded
// client surface is called cross-origin from tenant sites:
//
//	httputil.Chain(
//		httputil.CORSMiddleware(origins),
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
//
// # Related Packages
//
//   - pkg/middleware: authentication, tenant resolution and throttling
package httputil
