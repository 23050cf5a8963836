package idgen

import (
	"fmt"
	"sync"
	"time"
)

// Layout: 41 bits of milliseconds since epoch | 5 datacenter | 5 worker | 12 sequence.
const (
	sequenceBits   = 12
	workerBits     = 5
	datacenterBits = 5

	MaxWorkerID     = 1<<workerBits - 1
	MaxDatacenterID = 1<<datacenterBits - 1
	sequenceMask    = 1<<sequenceBits - 1

	workerShift     = sequenceBits
	datacenterShift = sequenceBits + workerBits
	timeShift       = sequenceBits + workerBits + datacenterBits

	// 2024-01-01T00:00:00Z
	epochMillis int64 = 1704067200000
)

type Snowflake struct {
	mu           sync.Mutex
	datacenterID int64
	workerID     int64
	sequence     int64
	lastMillis   int64
	now          func() time.Time
}

func NewSnowflake(datacenterID, workerID int64) (*Snowflake, error) {
	if datacenterID < 0 || datacenterID > MaxDatacenterID {
		return nil, fmt.Errorf("datacenter ID must be between 0 and %d, got %d", MaxDatacenterID, datacenterID)
	}
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, fmt.Errorf("worker ID must be between 0 and %d, got %d", MaxWorkerID, workerID)
	}

	return &Snowflake{
		datacenterID: datacenterID,
		workerID:     workerID,
		lastMillis:   -1,
		now:          time.Now,
	}, nil
}

// NextID returns a strictly increasing id for this generator.
func (s *Snowflake) NextID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.elapsed()
	if ms < s.lastMillis {
		return 0, fmt.Errorf("clock moved backwards by %dms", s.lastMillis-ms)
	}

	if ms == s.lastMillis {
		s.sequence = (s.sequence + 1) & sequenceMask
		if s.sequence == 0 {
			for ms <= s.lastMillis {
				ms = s.elapsed()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastMillis = ms

	return ms<<timeShift | s.datacenterID<<datacenterShift | s.workerID<<workerShift | s.sequence, nil
}

func (s *Snowflake) elapsed() int64 {
	return s.now().UnixMilli() - epochMillis
}

// ParseSnowflake splits an id into its components.
func ParseSnowflake(id int64) (ts time.Time, datacenterID, workerID, sequence int64) {
	ms := id >> timeShift
	ts = time.UnixMilli(ms + epochMillis)
	datacenterID = (id >> datacenterShift) & MaxDatacenterID
	workerID = (id >> workerShift) & MaxWorkerID
	sequence = id & sequenceMask
	return
}
