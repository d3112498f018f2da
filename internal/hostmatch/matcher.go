// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

// Package hostmatch flags reverse-DNS hostnames that belong to cloud or
// datacenter providers.
//
// Markers are compiled once into an Aho-Corasick automaton so every hostname is
// scanned in a single pass regardless of how many provider markers are
// configured. Matching is case-insensitive.
//
//	m := hostmatch.New(hostmatch.DefaultCloudMarkers)
//	m.IsCloud("ec2-3-1-2-3.compute-1.amazonaws.com") // true
package hostmatch

import "strings"

// DefaultCloudMarkers are the provider substrings checked when none are configured.
var DefaultCloudMarkers = []string{"amazonaws.com", "AMAZON", "AWS"}

type node struct {
	children map[rune]*node
	fail     *node
	// out holds the index of the shortest marker ending here (including via
	// failure links), or -1.
	out int
}

func newNode() *node {
	return &node{children: make(map[rune]*node), out: -1}
}

// Matcher is an immutable, concurrency-safe multi-pattern substring matcher.
type Matcher struct {
	root    *node
	markers []string
}

// New builds a matcher for the given markers. Empty markers are ignored.
func New(markers []string) *Matcher {
	m := &Matcher{root: newNode()}
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		m.insert(len(m.markers), strings.ToLower(marker))
		m.markers = append(m.markers, marker)
	}
	m.link()
	return m
}

func (m *Matcher) insert(index int, text string) {
	n := m.root
	for _, ch := range text {
		next := n.children[ch]
		if next == nil {
			next = newNode()
			n.children[ch] = next
		}
		n = next
	}
	if n.out < 0 {
		n.out = index
	}
}

// link builds failure links breadth-first.
func (m *Matcher) link() {
	queue := make([]*node, 0, len(m.root.children))
	for _, child := range m.root.children {
		child.fail = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for ch, child := range cur.children {
			queue = append(queue, child)

			f := cur.fail
			for f != nil && f.children[ch] == nil {
				f = f.fail
			}
			if f == nil {
				child.fail = m.root
			} else {
				child.fail = f.children[ch]
			}
			if child.out < 0 {
				child.out = child.fail.out
			}
		}
	}
}

// Match returns the first marker found in hostname.
func (m *Matcher) Match(hostname string) (string, bool) {
	if len(m.markers) == 0 || hostname == "" {
		return "", false
	}

	n := m.root
	for _, ch := range strings.ToLower(hostname) {
		for n != m.root && n.children[ch] == nil {
			n = n.fail
		}
		if next := n.children[ch]; next != nil {
			n = next
		}
		if n.out >= 0 {
			return m.markers[n.out], true
		}
	}
	return "", false
}

// IsCloud reports whether hostname contains any marker.
func (m *Matcher) IsCloud(hostname string) bool {
	_, ok := m.Match(hostname)
	return ok
}

// Markers returns the configured markers in insertion order.
func (m *Matcher) Markers() []string {
	out := make([]string, len(m.markers))
	copy(out, m.markers)
	return out
}
