// Package experiment holds the caller-owned container for one analysis:
// every derived artifact (metacell matrix, power table, networks, eigengene
// matrices) lives in a named slot of an Experiment value. There is no
// process-wide state; independent experiments never share mutable data.
package experiment

import (
	"fmt"
	"sort"

	"github.com/coexnet/coexnet/pkg/metacell"
	"github.com/coexnet/coexnet/pkg/network"
	"github.com/coexnet/coexnet/pkg/softpower"
	"github.com/coexnet/coexnet/pkg/summary"
	"github.com/google/uuid"
)

// Experiment is the append-only container for one analysis run. Slots are
// written once; overwriting is an error so stale derived data can never
// masquerade as fresh.
type Experiment struct {
	Name  string
	RunID string

	metacells  *metacell.Result
	powerTable *softpower.Table
	networks   map[string]*network.Result
	eigengenes map[string]*summary.Eigengenes
}

// New creates an empty experiment container.
func New(name string) *Experiment {
	return &Experiment{
		Name:       name,
		RunID:      uuid.New().String(),
		networks:   make(map[string]*network.Result),
		eigengenes: make(map[string]*summary.Eigengenes),
	}
}

// SetMetacells stores the aggregation result.
func (e *Experiment) SetMetacells(r *metacell.Result) error {
	if e.metacells != nil {
		return fmt.Errorf("experiment %s: metacells already set", e.Name)
	}
	e.metacells = r
	return nil
}

// Metacells returns the stored aggregation result, if any.
func (e *Experiment) Metacells() (*metacell.Result, bool) {
	return e.metacells, e.metacells != nil
}

// SetPowerTable stores the soft power sweep table.
func (e *Experiment) SetPowerTable(t *softpower.Table) error {
	if e.powerTable != nil {
		return fmt.Errorf("experiment %s: power table already set", e.Name)
	}
	e.powerTable = t
	return nil
}

// PowerTable returns the stored sweep table, if any.
func (e *Experiment) PowerTable() (*softpower.Table, bool) {
	return e.powerTable, e.powerTable != nil
}

// AddNetwork stores a network construction result under its name.
func (e *Experiment) AddNetwork(r *network.Result) error {
	if _, exists := e.networks[r.Name]; exists {
		return fmt.Errorf("experiment %s: network %q already set", e.Name, r.Name)
	}
	e.networks[r.Name] = r
	return nil
}

// Network returns a stored network by name.
func (e *Experiment) Network(name string) (*network.Result, bool) {
	r, ok := e.networks[name]
	return r, ok
}

// NetworkNames lists stored networks, sorted.
func (e *Experiment) NetworkNames() []string {
	names := make([]string, 0, len(e.networks))
	for n := range e.networks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddEigengenes stores an eigengene matrix under its name, so the raw and
// harmonized variants coexist.
func (e *Experiment) AddEigengenes(eg *summary.Eigengenes) error {
	if _, exists := e.eigengenes[eg.Name]; exists {
		return fmt.Errorf("experiment %s: eigengenes %q already set", e.Name, eg.Name)
	}
	e.eigengenes[eg.Name] = eg
	return nil
}

// Eigengenes returns a stored eigengene matrix by name.
func (e *Experiment) Eigengenes(name string) (*summary.Eigengenes, bool) {
	eg, ok := e.eigengenes[name]
	return eg, ok
}

// EigengeneNames lists stored eigengene matrices, sorted.
func (e *Experiment) EigengeneNames() []string {
	names := make([]string, 0, len(e.eigengenes))
	for n := range e.eigengenes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
