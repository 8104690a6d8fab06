package models

import (
	"time"

	"github.com/google/uuid"
)

// IntroInfo points at a host library item to play before the main content.
type IntroInfo struct {
	ItemID uuid.UUID `json:"itemId"`
}

// ReconcileResult summarizes one pass of aligning the local trailer cache with the catalog.
type ReconcileResult struct {
	RunID      string        `json:"runId"`
	CacheIDs   []string      `json:"cacheIds"`
	Downloaded int           `json:"downloaded"`
	Deleted    int           `json:"deleted"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
}
