// Copyright (C) 2024 The Dagu Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package catalog is the immutable, process-wide registry of known QC
// tests: names, dependencies, kinds, and algorithm handles.
package catalog

import (
	"fmt"
	"sort"

	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
)

// Algo is the opaque algorithm handle a TestDescriptor carries. The
// Harness dispatches on TestID to the concrete adapter; the Catalog
// only needs to know the handle exists and pass it through.
type Algo any

// Descriptor is a single entry in the Catalog.
type Descriptor struct {
	ID   qc.TestID
	Kind qc.Kind
	Deps []qc.TestID
	Algo Algo
}

// Registration is the input shape for building a Catalog: the static
// declaration of one test, as parsed from rove.yaml or registered
// in-process at startup.
type Registration struct {
	ID   qc.TestID
	Kind qc.Kind
	Deps []qc.TestID
	Algo Algo
}

// Catalog is the immutable registry. Safe for unsynchronized
// concurrent reads once built.
type Catalog struct {
	byID map[qc.TestID]Descriptor
}

// Build validates and constructs a Catalog from a set of
// registrations. It fails if any dependency does not resolve, if a
// series test depends on a spatial test, or if the declared
// dependency graph contains a cycle.
func Build(regs []Registration) (*Catalog, error) {
	c := &Catalog{byID: make(map[qc.TestID]Descriptor, len(regs))}

	for _, r := range regs {
		if _, dup := c.byID[r.ID]; dup {
			return nil, qcerrors.New(qcerrors.Internal, "duplicate test id %q", r.ID)
		}
		c.byID[r.ID] = Descriptor{ID: r.ID, Kind: r.Kind, Deps: append([]qc.TestID(nil), r.Deps...), Algo: r.Algo}
	}

	for _, d := range c.byID {
		for _, dep := range d.Deps {
			depDesc, ok := c.byID[dep]
			if !ok {
				return nil, qcerrors.New(qcerrors.Internal, "test %q depends on unknown test %q", d.ID, dep)
			}
			if d.Kind == qc.SeriesTest && depDesc.Kind == qc.SpatialTest {
				return nil, qcerrors.New(qcerrors.Internal, "series test %q may not depend on spatial test %q", d.ID, dep)
			}
		}
	}

	if err := c.checkAcyclic(); err != nil {
		return nil, err
	}

	return c, nil
}

// checkAcyclic walks the declared dependency edges (child -> parent)
// with the classic three-color DFS, failing on any back edge.
func (c *Catalog) checkAcyclic() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[qc.TestID]int, len(c.byID))

	var visit func(id qc.TestID, path []qc.TestID) error
	visit = func(id qc.TestID, path []qc.TestID) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return qcerrors.New(qcerrors.Internal, "cycle detected in catalog dependencies: %v", append(path, id))
		}
		color[id] = gray
		for _, dep := range c.byID[id].Deps {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for id := range c.byID {
		if err := visit(id, nil); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the descriptor registered under id.
func (c *Catalog) Lookup(id qc.TestID) (Descriptor, error) {
	d, ok := c.byID[id]
	if !ok {
		return Descriptor{}, qcerrors.New(qcerrors.UnknownTest, "unknown test %q", id)
	}
	return d, nil
}

// Has reports whether id is registered.
func (c *Catalog) Has(id qc.TestID) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns every descriptor in the catalog, ordered by id. Callers
// must not mutate the returned slice's Descriptors.
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, 0, len(c.byID))
	for _, d := range c.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) String() string {
	return fmt.Sprintf("catalog(%d tests)", len(c.byID))
}
