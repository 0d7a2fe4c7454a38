package model

import (
	"fmt"
	"sync"
)

// Slot names the run-state entries written by stages.
type Slot string

const (
	SlotVisionAnalysis     Slot = "vision_analysis"
	SlotSensorAnalysis     Slot = "sensor_analysis"
	SlotWeatherReport      Slot = "weather_report"
	SlotFinancialAnalysis  Slot = "financial_analysis"
	SlotComplianceAnalysis Slot = "compliance_analysis"
	SlotSummary            Slot = "summary"
)

// EmptyObject is the degraded-slot sentinel substituted when a stage exhausts
// its retries or its output cannot be decoded.
const EmptyObject = "{}"

// RunState is the shared state of one workflow execution. Each slot is
// written exactly once, by the stage that owns it, after the stage has fully
// completed; later stages only read earlier slots. Writes from concurrent
// sibling stages are key-disjoint, the mutex only guards the map itself.
type RunState struct {
	RunID string
	Date  string // YYYY-MM-DD, fixed at run start

	mu    sync.Mutex
	slots map[Slot]string

	EUAIActCached bool // set when the regulatory assessment came from cache
}

func NewRunState(runID, date string) *RunState {
	return &RunState{
		RunID: runID,
		Date:  date,
		slots: make(map[Slot]string),
	}
}

// Set writes a slot. Writing the same slot twice is a programming error and
// is rejected so the read-before-write bug class stays structurally
// impossible.
func (s *RunState) Set(slot Slot, payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[slot]; ok {
		return fmt.Errorf("slot %q already written", slot)
	}
	s.slots[slot] = payload
	return nil
}

// Get returns the slot payload, or "" when the slot was never written.
func (s *RunState) Get(slot Slot) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[slot]
}

// Degraded reports whether the slot is empty or holds the empty-object
// sentinel — either way it cannot contribute to the final report.
func (s *RunState) Degraded(slot Slot) bool {
	v := s.Get(slot)
	return v == "" || v == EmptyObject
}
