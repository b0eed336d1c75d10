package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a model provider is failing; the pipeline still
	// serves requests through its fallbacks.
	Degraded Status = "degraded"
	// Unhealthy indicates the catalog store is unreachable. No search
	// can succeed in this state.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks. The catalog is load-bearing;
// embedding and completion providers only degrade the service because
// every pipeline stage that uses them has a local fallback.
type Service struct {
	catalog    CatalogPinger
	embedding  ProviderChecker
	completion ProviderChecker
}

// New creates a Service. embedding and completion can be nil.
func New(catalog CatalogPinger, embedding, completion ProviderChecker) *Service {
	return &Service{catalog: catalog, embedding: embedding, completion: completion}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.catalog.Ping(ctx); err != nil {
		checks["catalog"] = CheckError
		status = Unhealthy
	} else {
		checks["catalog"] = CheckOK
	}

	degrade := func(name string, p ProviderChecker) {
		if p == nil {
			return
		}
		if err := p.HealthCheck(ctx); err != nil {
			checks[name] = CheckError
			if status == Healthy {
				status = Degraded
			}
			return
		}
		checks[name] = CheckOK
	}
	degrade("embedding", s.embedding)
	degrade("completion", s.completion)

	return Report{Status: status, Checks: checks}
}
