// ClickShield - Ad Click Fraud Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/clickshield

package ingest

// EventColumns names the event log columns that map onto RawEvent fields.
type EventColumns struct {
	DeviceID  string `koanf:"device_id" json:"device_id" validate:"required"`
	UserIP    string `koanf:"user_ip" json:"user_ip" validate:"required"`
	ClickDate string `koanf:"click_date" json:"click_date" validate:"required"`
	DoneDate  string `koanf:"done_date" json:"done_date" validate:"required"`
	CTIT      string `koanf:"ctit" json:"ctit" validate:"required"`
	MediaID   string `koanf:"media_id" json:"media_id" validate:"required"`
	AdID      string `koanf:"ad_id" json:"ad_id" validate:"required"`
}

// DefaultEventColumns returns the column names of the standard event export.
func DefaultEventColumns() EventColumns {
	return EventColumns{
		DeviceID:  "dvc_idx",
		UserIP:    "user_ip",
		ClickDate: "click_date",
		DoneDate:  "done_date",
		CTIT:      "ctit",
		MediaID:   "mda_idx",
		AdID:      "ads_idx",
	}
}

// AdColumns names the ad metadata columns that map onto AdMetadata fields.
type AdColumns struct {
	AdID       string `koanf:"ad_id" json:"ad_id" validate:"required"`
	AdType     string `koanf:"ad_type" json:"ad_type" validate:"required"`
	AdCategory string `koanf:"ad_category" json:"ad_category" validate:"required"`
	AdName     string `koanf:"ad_name" json:"ad_name" validate:"required"`
}

// DefaultAdColumns returns the column names of the standard ad list export.
func DefaultAdColumns() AdColumns {
	return AdColumns{
		AdID:       "ads_idx",
		AdType:     "ads_type",
		AdCategory: "ads_category",
		AdName:     "ads_name",
	}
}
