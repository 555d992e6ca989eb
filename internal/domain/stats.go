// Package domain contains the core data structures and domain logic for the application.
package domain

// SeriesStats holds descriptive statistics for a single chart series.
type SeriesStats struct {
	Name   string  `json:"name"`
	Points int     `json:"points"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Latest float64 `json:"latest"`
}
