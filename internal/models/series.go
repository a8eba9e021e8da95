package models

import (
	"time"

	"ahorrito/internal/uuid"

	"gorm.io/gorm"
)

// SeriesStatus tags the outcome of the refresh that produced a series value.
type SeriesStatus string

const (
	SeriesStatusOK           SeriesStatus = "ok"
	SeriesStatusNoData       SeriesStatus = "no_data"
	SeriesStatusTokenExpired SeriesStatus = "token_expired"
	SeriesStatusStale        SeriesStatus = "stale"
)

// SeriesPointer holds the current value of one logical data series. There is
// at most one pointer row per name; it is mutated only by the series cache
// and superseded in place, never deleted.
type SeriesPointer struct {
	Base
	Name           string       `gorm:"uniqueIndex;not null" json:"name"`
	Type           string       `gorm:"not null" json:"type"`
	Value          *float64     `json:"value"`
	StructuredData string       `json:"structured_data,omitempty"`
	SummaryParams  string       `json:"summary_params,omitempty"`
	Source         string       `json:"source"`
	Status         SeriesStatus `gorm:"not null" json:"status"`
	LastFetchedAt  time.Time    `gorm:"not null" json:"last_fetched_at"`
}

// SeriesSnapshot is an immutable historical version of a SeriesPointer.
// Versions per name are strictly increasing starting at 1 and exactly one
// snapshot per name has IsCurrent set. This is immutable time-series data —
// no Base embed, no soft deletes.
type SeriesSnapshot struct {
	ID             string       `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string       `gorm:"not null;index:idx_series_snapshots_name_version" json:"name"`
	Type           string       `gorm:"not null" json:"type"`
	Value          *float64     `json:"value"`
	StructuredData string       `json:"structured_data,omitempty"`
	SummaryParams  string       `json:"summary_params,omitempty"`
	Source         string       `json:"source"`
	Status         SeriesStatus `gorm:"not null" json:"status"`
	FetchedAt      time.Time    `gorm:"not null" json:"fetched_at"`
	Version        int          `gorm:"not null;index:idx_series_snapshots_name_version" json:"version"`
	IsCurrent      bool         `gorm:"not null;default:false" json:"is_current"`
}

// BeforeCreate hook generates a UUIDv7 for new snapshots.
func (s *SeriesSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New()
	}
	return nil
}
