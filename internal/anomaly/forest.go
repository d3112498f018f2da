// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package anomaly

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/goccy/go-json"
)

// eulerGamma is the Euler-Mascheroni constant used by the average path length.
const eulerGamma = 0.5772156649

// DefaultOutlierThreshold is the anomaly score above which a device is an outlier.
const DefaultOutlierThreshold = 0.5

// TreeNode is one node of an exported isolation tree. Internal nodes route a
// row to Left when row[Feature] <= Split, otherwise to Right. Leaves carry the
// number of training samples that reached them.
type TreeNode struct {
	Leaf    bool    `json:"leaf,omitempty"`
	Feature int     `json:"feature,omitempty"`
	Split   float64 `json:"split,omitempty"`
	Left    int     `json:"left,omitempty"`
	Right   int     `json:"right,omitempty"`
	Size    int     `json:"size,omitempty"`
}

// Tree is a flat node array rooted at index 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// IsolationForest evaluates a pretrained isolation forest.
type IsolationForest struct {
	Name       string   `json:"name"`
	Features   []string `json:"features"`
	SampleSize int      `json:"sample_size"`
	Threshold  float64  `json:"threshold"`
	Trees      []Tree   `json:"trees"`
}

// LoadIsolationForest reads and validates a forest artifact.
func LoadIsolationForest(path string) (*IsolationForest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f IsolationForest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if f.Threshold == 0 {
		f.Threshold = DefaultOutlierThreshold
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid forest %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks structural consistency. Child indices must point forward so
// evaluation always terminates.
func (f *IsolationForest) Validate() error {
	if len(f.Features) == 0 {
		return errors.New("no feature columns")
	}
	if len(f.Trees) == 0 {
		return errors.New("no trees")
	}
	if f.SampleSize < 2 {
		return fmt.Errorf("sample_size %d must be at least 2", f.SampleSize)
	}
	if f.Threshold <= 0 || f.Threshold >= 1 {
		return fmt.Errorf("threshold %v must be in (0,1)", f.Threshold)
	}
	for ti, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range tree.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= len(f.Features) {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Left >= len(tree.Nodes) || n.Right <= ni || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: invalid children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

// Available returns true; a loaded forest can always be evaluated.
func (f *IsolationForest) Available() bool { return true }

// Predict labels each row Outlier when its anomaly score exceeds the threshold.
func (f *IsolationForest) Predict(table FeatureTable) ([]Label, error) {
	if err := f.checkColumns(table.Columns); err != nil {
		return nil, err
	}
	labels := make([]Label, table.Len())
	for i, row := range table.Rows {
		if len(row) != len(f.Features) {
			return nil, fmt.Errorf("%w: row %d has %d values", ErrFeatureMismatch, i, len(row))
		}
		if f.Score(row) > f.Threshold {
			labels[i] = Outlier
		} else {
			labels[i] = Inlier
		}
	}
	return labels, nil
}

// Score returns 2^(-E[h(x)]/c(n)); values near 1 are anomalous, values well
// below 0.5 are normal.
func (f *IsolationForest) Score(row []float64) float64 {
	var total float64
	for i := range f.Trees {
		total += pathLength(&f.Trees[i], row)
	}
	avg := total / float64(len(f.Trees))
	return math.Pow(2, -avg/averagePathLength(f.SampleSize))
}

func (f *IsolationForest) checkColumns(cols []string) error {
	if len(cols) != len(f.Features) {
		return fmt.Errorf("%w: got %v, want %v", ErrFeatureMismatch, cols, f.Features)
	}
	for i := range cols {
		if cols[i] != f.Features[i] {
			return fmt.Errorf("%w: got %v, want %v", ErrFeatureMismatch, cols, f.Features)
		}
	}
	return nil
}

func pathLength(tree *Tree, row []float64) float64 {
	idx, depth := 0, 0
	for {
		n := &tree.Nodes[idx]
		if n.Leaf {
			return float64(depth) + averagePathLength(n.Size)
		}
		if row[n.Feature] <= n.Split {
			idx = n.Left
		} else {
			idx = n.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful search in
// a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
	}
}
