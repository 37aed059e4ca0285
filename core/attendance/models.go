package attendance

import (
	"context"
	"time"

	"github.com/trezcool/orbit/core"
)

// Provenance tells real session data from placeholder data.
type Provenance string

const (
	ProvenanceRemote   Provenance = "remote"
	ProvenanceFallback Provenance = "fallback"
)

// Distribution bucket boundaries, lower bounds included.
const (
	MediumFrom = 50
	HighFrom   = 80
)

// SessionRecord is one completed class session.
type SessionRecord struct {
	SessionID           string     `json:"sessionId" db:"id"`
	CollectionID        string     `json:"collectionId" db:"collection_id"`
	CollectionName      string     `json:"collectionName" db:"-"`
	StartTime           time.Time  `json:"startTime" db:"start_time"` // UTC
	DurationMinutes     int        `json:"durationMinutes" db:"duration_minutes"`
	TotalParticipants   int        `json:"totalParticipants" db:"total_participants"`
	PresentParticipants int        `json:"presentParticipants" db:"present_participants"`
	AttendanceRate      int        `json:"attendanceRate" db:"-"`
	Provenance          Provenance `json:"provenance" db:"-"`
}

// NewSessionRecord computes the attendance rate: 100*present/total rounded, 0 when nobody was expected.
func NewSessionRecord(id, collectionID string, start time.Time, minutes, total, present int, prov Provenance) SessionRecord {
	rec := SessionRecord{
		SessionID:           id,
		CollectionID:        collectionID,
		StartTime:           start.UTC(),
		DurationMinutes:     minutes,
		TotalParticipants:   total,
		PresentParticipants: present,
		Provenance:          prov,
	}
	rec.ComputeRate()
	return rec
}

func (r *SessionRecord) ComputeRate() {
	r.AttendanceRate = 0
	if r.TotalParticipants > 0 {
		r.AttendanceRate = core.RoundHalfUp(100*r.PresentParticipants, r.TotalParticipants)
	}
}

type Buckets struct {
	Low    int `json:"low"`    // rate < 50
	Medium int `json:"medium"` // 50 <= rate < 80
	High   int `json:"high"`   // rate >= 80
}

func (b *Buckets) add(rate int) {
	switch {
	case rate < MediumFrom:
		b.Low++
	case rate < HighFrom:
		b.Medium++
	default:
		b.High++
	}
}

type TimelinePoint struct {
	SessionID           string    `json:"sessionId"`
	CollectionID        string    `json:"collectionId"`
	CollectionName      string    `json:"collectionName"`
	Date                time.Time `json:"date"`
	AttendanceRate      int       `json:"attendanceRate"`
	TotalParticipants   int       `json:"totalParticipants"`
	PresentParticipants int       `json:"presentParticipants"`
}

// Snapshot is a read-only projection of the session records matching Filter.
type Snapshot struct {
	Filter            string          `json:"filter"`
	SessionCount      int             `json:"sessionCount"`
	TotalHours        int             `json:"totalHours"`
	AverageAttendance int             `json:"averageAttendance"`
	Buckets           Buckets         `json:"buckets"`
	Timeline          []TimelinePoint `json:"timeline"`
	Provenance        Provenance      `json:"provenance,omitempty"`
	Fallback          bool            `json:"fallback"`
}

// SessionFilter narrows a session listing. Zero values do not filter.
type SessionFilter struct {
	CollectionIDs []string
	From          time.Time
	To            time.Time
}

type (
	// Source lists the completed sessions visible to a faculty member or a student.
	Source interface {
		ListSessions(ctx context.Context, owner string, filter SessionFilter) ([]SessionRecord, error)
	}

	Repository interface {
		Source
		CreateSession(ctx context.Context, rec SessionRecord) (SessionRecord, error)
	}

	// Sink is told every time the snapshot changes, after loads and filter changes.
	Sink interface {
		OnSnapshotChanged(snapshot Snapshot)
	}

	SinkFactory func(owner string) Sink
)

type nopSink struct{}

func (nopSink) OnSnapshotChanged(Snapshot) {}
