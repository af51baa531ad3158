package model

import "time"

type RunState string

const (
	RunStateInit           RunState = "INIT"
	RunStateCheckAuth      RunState = "CHECK_AUTH"
	RunStateLogin          RunState = "LOGIN"
	RunStateCheckStatus    RunState = "CHECK_STATUS"
	RunStatePerformCheckin RunState = "PERFORM_CHECKIN"
	RunStateReport         RunState = "REPORT"
	RunStateDone           RunState = "DONE"
)

type RunRecord struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	State      RunState  `json:"state"`
	Success    bool      `json:"success"`
	CheckedIn  bool      `json:"checkedIn"`
	Label      string    `json:"label,omitempty"`
	Summary    Summary   `json:"summary,omitempty"`
	Error      string    `json:"error,omitempty"`
	EventsJSON string    `json:"-"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
