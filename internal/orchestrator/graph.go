package orchestrator

import (
	"fmt"
	"sort"

	"chainpad/internal/config"
	"chainpad/internal/errors"
)

// Graph holds the service dependency graph in topological order.
// Construction fails on unknown references and cycles before anything is
// spawned.
type Graph struct {
	order        []string
	dependencies map[string][]string
	dependents   map[string][]string
}

// NewGraph builds the dependency graph for a topology. The returned order
// is deterministic: ties break alphabetically.
func NewGraph(services []config.TopologyService) (*Graph, error) {
	g := &Graph{
		dependencies: make(map[string][]string, len(services)),
		dependents:   make(map[string][]string, len(services)),
	}

	// An edge to an undeclared service is a topology error, not a cycle
	declared := make(map[string]struct{}, len(services))
	for _, svc := range services {
		declared[svc.Name] = struct{}{}
	}
	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			if _, ok := declared[dep]; !ok {
				return nil, errors.TopologyInvalid(
					fmt.Sprintf("service %s depends on undeclared service %s", svc.Name, dep))
			}
		}
	}

	indegree := make(map[string]int, len(services))
	for _, svc := range services {
		indegree[svc.Name] = len(svc.DependsOn)
		g.dependencies[svc.Name] = append([]string(nil), svc.DependsOn...)
		for _, dep := range svc.DependsOn {
			g.dependents[dep] = append(g.dependents[dep], svc.Name)
		}
	}

	// Kahn's algorithm with a sorted ready set
	ready := make([]string, 0, len(services))
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		g.order = append(g.order, name)

		next := []string{}
		for _, dependent := range g.dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				next = append(next, dependent)
			}
		}
		sort.Strings(next)
		ready = mergeSorted(ready, next)
	}

	if len(g.order) != len(services) {
		cycle := []string{}
		for name, deg := range indegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, errors.CycleDetected(cycle)
	}

	return g, nil
}

// Order returns service names in dependency order: dependencies first
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// ReverseOrder returns service names in stop order: dependents first
func (g *Graph) ReverseOrder() []string {
	reversed := make([]string, len(g.order))
	for i, name := range g.order {
		reversed[len(g.order)-1-i] = name
	}
	return reversed
}

// Dependencies returns the direct dependencies of a service
func (g *Graph) Dependencies(name string) []string {
	return g.dependencies[name]
}

// Dependents returns the services that directly depend on name
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name]
}

func mergeSorted(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return merged
}
