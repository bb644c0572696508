// Package observability provides structured logging, Prometheus
// metrics, health checks and OpenTelemetry tracing.
//
// Logging:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("slug", slug).Info("Dashboard created")
//
// Metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.ObservePermissionCheck("dashboard", "read", true)
//
// Health checks:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker)
//
// Tracing:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "geosight-api",
//	}, logger)
package observability
