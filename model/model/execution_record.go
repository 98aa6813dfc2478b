package model

import (
	"time"
)

// Execution statuses.
const (
	ExecutionStatusPending   = "pending"
	ExecutionStatusSucceeded = "succeeded"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusSkipped   = "skipped"
)

// ExecutionRecord - At-most-once ledger entry for a (rule, event) pair.
// Created as pending when the pair is first matched, advanced to a
// terminal status by the dispatcher, never deleted by normal operation.
type ExecutionRecord struct {
	RuleID     string     `gorm:"column:rule_id; primary_key:true" json:"rule_id"`
	EventID    string     `gorm:"column:event_id; primary_key:true" json:"event_id"`
	Status     string     `gorm:"column:status; not null" json:"status"`
	Attempts   int        `gorm:"column:attempts; not null; default:0" json:"attempts"`
	LastError  string     `gorm:"column:last_error" json:"last_error,omitempty"`
	StartedAt  time.Time  `gorm:"column:started_at" json:"started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
}

func (ExecutionRecord) TableName() string {
	return "execution_records"
}

func (record *ExecutionRecord) IsTerminal() bool {
	return record.Status != ExecutionStatusPending
}

type ExecutionStats struct {
	Count    int64            `json:"count"`
	ByStatus map[string]int64 `json:"by_status"`
}

type AutomationStats struct {
	ActiveRules     int64 `json:"active_rules"`
	ExecutionsToday int64 `json:"executions_today"`
}
