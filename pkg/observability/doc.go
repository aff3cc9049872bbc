// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown helpers.
//
// # Structured Logging
//
// Create a logger and narrow it per component:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Named("api").Infof("listening on %s", addr)
//
// Per-request logging picks up the identifiers the middleware chain stored
// in the context (request_id, user_id, tenant_id):
//
//	observability.FromContext(ctx).WithError(err).Error("request failed")
//
// # Prometheus Metrics
//
// Initialize metrics against a registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
//
// Serve them:
//
//	mux.Handle("/metrics", observability.Handler(registry))
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	status := checker.Check(ctx)
//	fmt.Printf("status: %s\n", status.Status)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request logging and recovery middleware
package observability
