package discovery

import (
	"github.com/veil-network/pool-scanner/common"
)

type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateCancelled RunState = "cancelled"
	RunStateFailed    RunState = "failed"
)

func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateCancelled || s == RunStateFailed
}

// Progress is a snapshot of a discovery run, emitted at page checkpoints and
// whenever a new deposit is matched.
type Progress struct {
	Identity common.Identity `json:"identity"`
	Pool     common.Pool     `json:"pool"`
	State    RunState        `json:"state"`

	PagesProcessed  int    `json:"pagesProcessed"`
	RecordsSeen     int    `json:"recordsSeen"`
	DepositsChecked int    `json:"depositsChecked"`
	DepositsMatched int    `json:"depositsMatched"`
	Cursor          string `json:"cursor"`
	Done            bool   `json:"done"`
}
