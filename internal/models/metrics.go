package models

import "time"

// SystemMetrics is a lightweight snapshot of the process instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64    `json:"cache_hit_ratio"`
	CacheHits                uint64     `json:"cache_hits"`
	CacheMisses              uint64     `json:"cache_misses"`
	RequestsTotal            uint64     `json:"requests_total"`
	AverageRequestDurationMs float64    `json:"average_request_duration_ms"`
	PopulationRuns           uint64     `json:"population_runs"`
	PopulationFailures       uint64     `json:"population_failures"`
	LastPopulationAt         *time.Time `json:"last_population_at,omitempty"`
	SeatsAssigned            uint64     `json:"seats_assigned"`
	NotificationsQueued      uint64     `json:"notifications_queued"`
	NotificationFailures     uint64     `json:"notification_failures"`
	Goroutines               int        `json:"goroutines"`
	GeneratedAt              time.Time  `json:"generated_at"`
}
