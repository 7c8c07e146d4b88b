package hyena

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/hyena-client/internal/core/domain"
	"github.com/kirillkom/hyena-client/internal/infrastructure/resilience"
)

type healthProbe struct {
	name     string
	path     string
	healthy  string
	assignTo func(*domain.HealthReport, domain.ProbeResult)
}

var healthProbes = []healthProbe{
	{name: "api", path: "/health/", healthy: "healthy", assignTo: func(r *domain.HealthReport, p domain.ProbeResult) { r.API = p }},
	{name: "qdrant", path: "/health/qdrant", healthy: "connected", assignTo: func(r *domain.HealthReport, p domain.ProbeResult) { r.VectorStore = p }},
	{name: "redis", path: "/health/redis", healthy: "connected", assignTo: func(r *domain.HealthReport, p domain.ProbeResult) { r.KeyValue = p }},
}

// Health runs the three backend probes concurrently. A probe that cannot be
// reached is reported as unhealthy rather than failing the whole report.
func (c *Client) Health(ctx context.Context) domain.HealthReport {
	results := make([]domain.ProbeResult, len(healthProbes))
	g, gctx := errgroup.WithContext(ctx)
	for i, probe := range healthProbes {
		g.Go(func() error {
			results[i] = c.probe(gctx, probe)
			return nil
		})
	}
	_ = g.Wait()

	var report domain.HealthReport
	for i, probe := range healthProbes {
		probe.assignTo(&report, results[i])
	}
	return report
}

func (c *Client) probe(ctx context.Context, probe healthProbe) domain.ProbeResult {
	var body struct {
		Status      string   `json:"status"`
		Message     string   `json:"message"`
		Collections []string `json:"collections"`
	}
	op := "health_" + probe.name
	err := c.exec.Execute(ctx, op, func(callCtx context.Context) error {
		return c.getJSON(callCtx, probe.path, &body, op)
	}, resilience.ClassifyTransport)
	if err != nil {
		return domain.ProbeResult{Name: probe.name, Status: "unreachable", Message: err.Error()}
	}
	return domain.ProbeResult{
		Name:        probe.name,
		OK:          strings.EqualFold(body.Status, probe.healthy),
		Status:      body.Status,
		Message:     body.Message,
		Collections: body.Collections,
	}
}
