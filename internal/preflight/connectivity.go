// Package preflight implements the advisory checks run once per distinct
// domain before a batch starts: network connectivity, directory controller
// discovery, and credential validation.
package preflight

import (
	"context"
	"net"
	"sort"
	"time"

	"groupsyncservice/internal/directory"
	"groupsyncservice/internal/domain"
)

// Prober runs per-domain connectivity checks. Reachability and controller
// discovery are tracked separately: a domain can resolve in DNS while no
// controller accepts connections.
type Prober struct {
	Client  directory.Client
	Timeout time.Duration

	// resolve is overridable for tests; defaults to a DNS host lookup.
	resolve func(ctx context.Context, domainName string) error
}

// NewProber creates a connectivity prober using client for controller discovery.
func NewProber(client directory.Client, timeout time.Duration) *Prober {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Prober{
		Client:  client,
		Timeout: timeout,
		resolve: func(ctx context.Context, domainName string) error {
			var resolver net.Resolver
			_, err := resolver.LookupHost(ctx, domainName)
			return err
		},
	}
}

// ProbeDomains checks every distinct domain independently and aggregates the
// results. Probe failures are reported, never raised; the caller decides
// whether to continue.
func (p *Prober) ProbeDomains(ctx context.Context, domains []string) domain.ConnectivitySummary {
	summary := domain.ConnectivitySummary{
		Results:                  make(map[string]domain.ConnectivityResult, len(domains)),
		AllReachable:             true,
		AllControllersAccessible: true,
	}

	for _, name := range dedupe(domains) {
		result := p.probeDomain(ctx, name)
		summary.Results[name] = result

		if !result.Reachable {
			summary.AllReachable = false
			summary.UnreachableDomains = append(summary.UnreachableDomains, name)
		}
		if !result.ControllerFound {
			summary.AllControllersAccessible = false
			if result.Reachable {
				summary.DomainsWithoutController = append(summary.DomainsWithoutController, name)
			}
		}
	}
	return summary
}

// probeDomain checks one domain: DNS reachability first, controller discovery
// only if the domain resolved.
func (p *Prober) probeDomain(ctx context.Context, name string) domain.ConnectivityResult {
	result := domain.ConnectivityResult{Domain: name}

	probeCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	if err := p.resolve(probeCtx, name); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Reachable = true

	controller, err := p.Client.ProbeDomainController(probeCtx, name)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.ControllerFound = true
	result.ControllerName = controller
	return result
}

// dedupe returns the distinct domains in sorted order so probe output is
// deterministic.
func dedupe(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	var out []string
	for _, d := range domains {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// DistinctDomains collects the union of source and target domains across requests.
func DistinctDomains(requests []domain.MembershipRequest) []string {
	var all []string
	for _, r := range requests {
		all = append(all, r.SourceDomain, r.TargetDomain)
	}
	return dedupe(all)
}
