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

// Package dag implements the directed acyclic graph over QC tests:
// an arena of integer-indexed nodes plus parent/child edge sets, and
// the sub-DAG extraction that the Scheduler plans a run from.
package dag

import (
	"github.com/metno/rove/internal/catalog"
	"github.com/metno/rove/internal/qc"
	"github.com/metno/rove/internal/qcerrors"
)

// Node is one entry in the DAG's arena. Children/parents are stored
// as index sets, never as owning pointers, so the structure is
// cycle-free by construction and cheap to clone for extraction.
type Node struct {
	Descriptor catalog.Descriptor
	parents    []int
	children   []int
}

// DAG is the full dependency graph over every test in a Catalog.
type DAG struct {
	nodes   []Node
	indexOf map[qc.TestID]int
}

// Build constructs the full DAG from a Catalog. Edges run parent ->
// child, meaning "child depends on parent" (the child's Deps name its
// parents).
func Build(cat *catalog.Catalog) (*DAG, error) {
	descs := cat.All()
	d := &DAG{
		nodes:   make([]Node, len(descs)),
		indexOf: make(map[qc.TestID]int, len(descs)),
	}
	for i, desc := range descs {
		d.nodes[i] = Node{Descriptor: desc}
		d.indexOf[desc.ID] = i
	}
	for i := range d.nodes {
		for _, dep := range d.nodes[i].Descriptor.Deps {
			pIdx, ok := d.indexOf[dep]
			if !ok {
				return nil, qcerrors.New(qcerrors.Internal, "dependency %q of %q not found in catalog", dep, d.nodes[i].Descriptor.ID)
			}
			if err := d.AddEdge(pIdx, i); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

// InsertRoot appends a node with no edges and returns its index.
func (d *DAG) InsertRoot(desc catalog.Descriptor) int {
	idx := len(d.nodes)
	d.nodes = append(d.nodes, Node{Descriptor: desc})
	if d.indexOf == nil {
		d.indexOf = make(map[qc.TestID]int)
	}
	d.indexOf[desc.ID] = idx
	return idx
}

// InsertChild appends a node depending on parent and returns its
// index.
func (d *DAG) InsertChild(parent int, desc catalog.Descriptor) (int, error) {
	idx := d.InsertRoot(desc)
	if err := d.AddEdge(parent, idx); err != nil {
		return 0, err
	}
	return idx, nil
}

// AddEdge records that child depends on parent, rejecting duplicate
// edges and edges that would close a cycle.
func (d *DAG) AddEdge(parent, child int) error {
	for _, c := range d.nodes[parent].children {
		if c == child {
			return qcerrors.New(qcerrors.Internal, "duplicate edge %d -> %d", parent, child)
		}
	}
	if parent == child || d.reaches(child, parent) {
		return qcerrors.New(qcerrors.Internal, "edge %d -> %d would create a cycle", parent, child)
	}
	d.nodes[parent].children = append(d.nodes[parent].children, child)
	d.nodes[child].parents = append(d.nodes[child].parents, parent)
	return nil
}

// reaches reports whether a path from -> ... -> to already exists
// along child edges.
func (d *DAG) reaches(from, to int) bool {
	if from == to {
		return true
	}
	for _, c := range d.nodes[from].children {
		if d.reaches(c, to) {
			return true
		}
	}
	return false
}

// IndexOf returns the arena index for a test id.
func (d *DAG) IndexOf(id qc.TestID) (int, bool) {
	idx, ok := d.indexOf[id]
	return idx, ok
}

// Nodes returns the full node arena. Callers must treat it as
// read-only.
func (d *DAG) Nodes() []Node { return d.nodes }

// Parents returns the indices of idx's parents (tests that must
// complete before idx can run).
func (d *DAG) Parents(idx int) []int { return d.nodes[idx].parents }

// Children returns the indices of idx's children (tests that depend
// on idx).
func (d *DAG) Children(idx int) []int { return d.nodes[idx].children }

// Roots returns the indices of every node with no parents.
func (d *DAG) Roots() []int {
	var out []int
	for i, n := range d.nodes {
		if len(n.parents) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Leaves returns the indices of every node with no children.
func (d *DAG) Leaves() []int {
	var out []int
	for i, n := range d.nodes {
		if len(n.children) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// SubDAG is the minimal subgraph produced by Extract: every required
// node plus all of its transitive dependencies, and every edge with
// both endpoints in that set.
type SubDAG struct {
	nodes   []Node
	indexOf map[qc.TestID]int
}

// Nodes returns the sub-DAG's node arena (re-indexed from 0).
func (s *SubDAG) Nodes() []Node { return s.nodes }

// IndexOf returns the sub-DAG-local index for a test id.
func (s *SubDAG) IndexOf(id qc.TestID) (int, bool) {
	idx, ok := s.indexOf[id]
	return idx, ok
}

// Parents returns the sub-DAG-local indices of idx's parents.
func (s *SubDAG) Parents(idx int) []int { return s.nodes[idx].parents }

// Children returns the sub-DAG-local indices of idx's children.
func (s *SubDAG) Children(idx int) []int { return s.nodes[idx].children }

// Roots returns the indices of every sub-DAG node with no parents,
// the tests that are runnable immediately.
func (s *SubDAG) Roots() []int {
	var out []int
	for i, n := range s.nodes {
		if len(n.parents) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Leaves returns the indices of every sub-DAG node with no children.
func (s *SubDAG) Leaves() []int {
	var out []int
	for i, n := range s.nodes {
		if len(n.children) == 0 {
			out = append(out, i)
		}
	}
	return out
}

// Extract builds the minimal sub-DAG that guarantees every required
// test has had all its transitive dependencies run: the ancestor
// closure of required over the parent relation, plus exactly the
// edges with both endpoints in that closure.
//
// Required ids not present in the Catalog fail with UnknownTest.
// Duplicate ids in required are harmless — the closure is a set.
func (d *DAG) Extract(required []qc.TestID) (*SubDAG, error) {
	keep := make(map[int]bool)

	var addAncestors func(idx int)
	addAncestors = func(idx int) {
		if keep[idx] {
			return
		}
		keep[idx] = true
		for _, p := range d.nodes[idx].parents {
			addAncestors(p)
		}
	}

	for _, id := range required {
		idx, ok := d.indexOf[id]
		if !ok {
			return nil, qcerrors.New(qcerrors.UnknownTest, "unknown test %q", id)
		}
		addAncestors(idx)
	}

	// Stable, deterministic re-indexing: iterate the parent arena in
	// its original index order rather than ranging over the `keep`
	// map, so two calls with the same `required` set produce
	// identically shaped sub-DAGs.
	oldToNew := make(map[int]int, len(keep))
	sub := &SubDAG{indexOf: make(map[qc.TestID]int, len(keep))}
	for oldIdx := range d.nodes {
		if !keep[oldIdx] {
			continue
		}
		newIdx := len(sub.nodes)
		oldToNew[oldIdx] = newIdx
		desc := d.nodes[oldIdx].Descriptor
		sub.nodes = append(sub.nodes, Node{Descriptor: desc})
		sub.indexOf[desc.ID] = newIdx
	}

	for oldIdx, newIdx := range oldToNew {
		for _, oldChild := range d.nodes[oldIdx].children {
			newChild, ok := oldToNew[oldChild]
			if !ok {
				continue // child pruned: not an ancestor of any required node
			}
			sub.nodes[newIdx].children = append(sub.nodes[newIdx].children, newChild)
			sub.nodes[newChild].parents = append(sub.nodes[newChild].parents, newIdx)
		}
	}

	return sub, nil
}
