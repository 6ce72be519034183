// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm holds small, strict transition tables for persisted status columns.
package fsm

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for edges that are not in the table.
var ErrInvalidTransition = errors.New("invalid transition")

// Edge describes a single allowed status change.
type Edge[S ~string] struct {
	From S
	To   S
}

// Table is an immutable set of allowed edges.
// It is intentionally strict: unknown transitions are errors.
type Table[S ~string] struct {
	name  string
	index map[Edge[S]]struct{}
}

// NewTable builds a table and rejects duplicate edges.
func NewTable[S ~string](name string, edges ...Edge[S]) (*Table[S], error) {
	idx := make(map[Edge[S]]struct{}, len(edges))
	for _, e := range edges {
		if _, exists := idx[e]; exists {
			return nil, fmt.Errorf("%s: duplicate transition: %s -> %s", name, e.From, e.To)
		}
		idx[e] = struct{}{}
	}
	return &Table[S]{name: name, index: idx}, nil
}

// MustTable is NewTable for package-level tables.
func MustTable[S ~string](name string, edges ...Edge[S]) *Table[S] {
	t, err := NewTable(name, edges...)
	if err != nil {
		panic(err)
	}
	return t
}

// Allows reports whether from -> to is a known edge.
func (t *Table[S]) Allows(from, to S) bool {
	_, ok := t.index[Edge[S]{From: from, To: to}]
	return ok
}

// Check returns ErrInvalidTransition (wrapped) for unknown edges.
func (t *Table[S]) Check(from, to S) error {
	if t.Allows(from, to) {
		return nil
	}
	return fmt.Errorf("%s: %w: %s -> %s", t.name, ErrInvalidTransition, from, to)
}

// Sources lists the states that may move to the given target.
func (t *Table[S]) Sources(to S) []S {
	var out []S
	for e := range t.index {
		if e.To == to {
			out = append(out, e.From)
		}
	}
	return out
}
