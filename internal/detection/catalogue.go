// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package detection

import "sort"

// HighImportanceScore is the weight at which a rule is reported as high importance.
const HighImportanceScore = 30

// CatalogueEntry describes one enabled rule and its active weight.
type CatalogueEntry struct {
	ID          RuleID `json:"id"`
	Tag         string `json:"tag"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Modes       []Mode `json:"modes"`
	Score       int    `json:"score"`
	Importance  string `json:"importance"`
}

// RuleCatalogue lists the enabled rules of cfg, heaviest first. Rules with
// equal weight keep registry order.
func RuleCatalogue(cfg Config) []CatalogueEntry {
	entries := make([]CatalogueEntry, 0, len(registry))
	for _, r := range registry {
		w := cfg.Weight(r.ID)
		if w <= 0 {
			continue
		}
		importance := "normal"
		if w >= HighImportanceScore {
			importance = "high"
		}
		entries = append(entries, CatalogueEntry{
			ID:          r.ID,
			Tag:         r.Tag,
			Name:        r.Name,
			Description: r.Description,
			Modes:       r.Modes,
			Score:       w,
			Importance:  importance,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}
