// Package health reports whether the service's dependencies answer, over
// HTTP for load balancers and over the standard gRPC health protocol for
// orchestrators.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name this process reports under,
// next to the overall "" service.
const ServiceName = "collaborative-docs"

// Probe returns nil when the dependency it checks is reachable.
type Probe func(ctx context.Context) error

type Checker struct {
	probes  map[string]Probe
	timeout time.Duration
	logger  *zap.Logger

	grpcHealth *grpchealth.Server

	mu   sync.RWMutex
	last Report
}

type Report struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
}

func NewChecker(timeout time.Duration, logger *zap.Logger) *Checker {
	return &Checker{
		probes:     make(map[string]Probe),
		timeout:    timeout,
		logger:     logger,
		grpcHealth: grpchealth.NewServer(),
	}
}

// Register adds a named probe. It must be called before Run or Check.
func (c *Checker) Register(name string, probe Probe) {
	c.probes[name] = probe
}

// Check runs every probe concurrently and publishes the result to the gRPC
// health server.
func (c *Checker) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(c.probes))
	for name, probe := range c.probes {
		go func(name string, probe Probe) {
			results <- result{name: name, err: probe(ctx)}
		}(name, probe)
	}

	report := Report{Healthy: true, Checks: make(map[string]string, len(c.probes))}
	for range c.probes {
		r := <-results
		if r.err != nil {
			report.Healthy = false
			report.Checks[r.name] = r.err.Error()
			continue
		}
		report.Checks[r.name] = "ok"
	}

	c.publish(report)
	return report
}

func (c *Checker) publish(report Report) {
	c.mu.Lock()
	changed := report.Healthy != c.last.Healthy || c.last.Checks == nil
	c.last = report
	c.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	if !report.Healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.grpcHealth.SetServingStatus("", status)
	c.grpcHealth.SetServingStatus(ServiceName, status)

	if changed {
		c.logger.Info("health changed", zap.Bool("healthy", report.Healthy), zap.Strings("failing", sortedFailures(report)))
	}
}

func sortedFailures(report Report) []string {
	var failing []string
	for name, state := range report.Checks {
		if state != "ok" {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	return failing
}

// Run re-checks every interval until ctx is done.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.grpcHealth.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Handler answers GET /healthz with a fresh check.
func (c *Checker) Handler(ctx *gin.Context) {
	report := c.Check(ctx.Request.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, report)
}

// RegisterGRPC exposes the health service on srv.
func (c *Checker) RegisterGRPC(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, c.grpcHealth)
}
