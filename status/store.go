package status

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// DiscontinuitySample is one row of recoverable input drift/discontinuity
// history, persisted for post-hoc inspection.
type DiscontinuitySample struct {
	ID        uint `gorm:"primaryKey"`
	Timestamp time.Time
	Reason    string
}

// ARQDepthSample is one row of per-output retransmission cache depth
// history.
type ARQDepthSample struct {
	ID        uint `gorm:"primaryKey"`
	Timestamp time.Time
	OutputID  int
	Depth     int
}

// Store is the local history persistence layer: one *gorm.DB shared by
// every recorder.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (creating if needed) a sqlite-backed Store at path.
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("status: open store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&DiscontinuitySample{}, &ARQDepthSample{}); err != nil {
		return nil, fmt.Errorf("status: migrate store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// RecordDiscontinuity appends a discontinuity event.
func (s *Store) RecordDiscontinuity(reason string) error {
	return s.db.Create(&DiscontinuitySample{Timestamp: time.Now(), Reason: reason}).Error
}

// RecordARQDepth appends a per-output ARQ cache depth sample.
func (s *Store) RecordARQDepth(outputID, depth int) error {
	return s.db.Create(&ARQDepthSample{Timestamp: time.Now(), OutputID: outputID, Depth: depth}).Error
}

// RecentDiscontinuities returns the last limit discontinuity samples, most
// recent first.
func (s *Store) RecentDiscontinuities(limit int) ([]DiscontinuitySample, error) {
	var out []DiscontinuitySample
	err := s.db.Order("timestamp desc").Limit(limit).Find(&out).Error
	return out, err
}
