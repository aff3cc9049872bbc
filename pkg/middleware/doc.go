// Package middleware provides the HTTP middleware chain: tenant resolution,
// bearer-token authentication, scope enforcement and login-attempt rate
// limiting.
//
// Ordering matters. ResolveTenant runs first so the tenant is available to
// everything downstream, then Auth, then per-route scope requirements:
//
//	r.Use(middleware.ResolveTenant(resolver, metrics))
//	r.Use(authMW.Handler)
//	r.Handle("/personas", middleware.RequireAnyScope("personas:read")(h))
package middleware
