package domain

import "time"

// WindowState is the lifecycle position of a reporting window.
type WindowState string

const (
	WindowEmpty        WindowState = "empty"
	WindowAccumulating WindowState = "accumulating"
	WindowAssembled    WindowState = "assembled"
)

// TrackedTitle is a MatchedTitle plus the window bookkeeping around it.
type TrackedTitle struct {
	MatchedTitle
	Seq       int    `json:"seq"`
	Flushed   int    `json:"flushed"`
	LastCycle string `json:"last_cycle"`
}

// WindowSnapshot is the serialisable form of an open window.
type WindowSnapshot struct {
	ID           string         `json:"id"`
	Mode         WindowMode     `json:"mode"`
	State        WindowState    `json:"state"`
	OpenedAt     time.Time      `json:"opened_at"`
	LastCycleAt  time.Time      `json:"last_cycle_at"`
	LastReportAt time.Time      `json:"last_report_at"`
	Cycles       []string       `json:"cycles"`
	FailedIDs    []string       `json:"failed_ids"`
	TotalTitles  int            `json:"total_titles"`
	Titles       []TrackedTitle `json:"titles"`
}
