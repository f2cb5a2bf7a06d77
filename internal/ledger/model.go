package ledger

import (
	"time"

	"gorm.io/datatypes"
)

// auditRecordModel is the persisted shape of a Record.
type auditRecordModel struct {
	ID         int64          `gorm:"column:id;primaryKey;autoIncrement"`
	RecordID   string         `gorm:"column:record_id;uniqueIndex"`
	SignalID   string         `gorm:"column:signal_id;index"`
	Stage      string         `gorm:"column:stage"`
	Attempt    int            `gorm:"column:attempt"`
	Input      datatypes.JSON `gorm:"column:input"`
	Output     datatypes.JSON `gorm:"column:output"`
	StartedAt  time.Time      `gorm:"column:started_at"`
	FinishedAt time.Time      `gorm:"column:finished_at"`
	Outcome    string         `gorm:"column:outcome"`
	Detail     string         `gorm:"column:detail"`
}

func (auditRecordModel) TableName() string { return "audit_records" }

func toModel(rec Record) auditRecordModel {
	return auditRecordModel{
		RecordID:   rec.ID,
		SignalID:   rec.SignalID,
		Stage:      rec.Stage,
		Attempt:    rec.Attempt,
		Input:      datatypes.JSON(rec.Input),
		Output:     datatypes.JSON(rec.Output),
		StartedAt:  rec.StartedAt.UTC(),
		FinishedAt: rec.FinishedAt.UTC(),
		Outcome:    string(rec.Outcome),
		Detail:     rec.Detail,
	}
}

func fromModel(m auditRecordModel) Record {
	return Record{
		ID:         m.RecordID,
		SignalID:   m.SignalID,
		Stage:      m.Stage,
		Attempt:    m.Attempt,
		Input:      []byte(m.Input),
		Output:     []byte(m.Output),
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Outcome:    Outcome(m.Outcome),
		Detail:     m.Detail,
	}
}
