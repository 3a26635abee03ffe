// Package memory implements the repository interfaces with plain maps.
//
// The first deployment of this platform kept all state in process memory
// and accepted losing it on restart; this package preserves that mode
// behind the same interfaces the SQLite backend implements. It is also
// what the service tests run against — same semantics, no files.
//
// All stores share one mutex. The write volume here is a single user
// clicking through lessons; contention is not a concern, and a single
// lock keeps the cross-entity invariants (user exists before enrollment,
// enrollment before completion) easy to reason about.
package memory

import (
	"sync"

	"github.com/sakif/crypto-academy/internal/model"
)

// Store is the shared in-memory state. Create one per process (or per
// test) and hand out the entity views.
type Store struct {
	mu          sync.RWMutex
	users       map[string]*model.User                  // by user ID
	enrollments map[string][]*model.Enrollment          // by user ID, insertion order
	lessons     map[string]map[lessonKey]*model.LessonCompletion // by user ID
	stats       map[string]*model.OverallStats          // by user ID
	seq         int
}

type lessonKey struct {
	courseID string
	lessonID int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[string]*model.User),
		enrollments: make(map[string][]*model.Enrollment),
		lessons:     make(map[string]map[lessonKey]*model.LessonCompletion),
		stats:       make(map[string]*model.OverallStats),
	}
}

// Per-entity accessors, mirroring sqlite.DB.

func (s *Store) Users() *UserStore             { return &UserStore{s} }
func (s *Store) Enrollments() *EnrollmentStore { return &EnrollmentStore{s} }
func (s *Store) Lessons() *LessonStore         { return &LessonStore{s} }
func (s *Store) Stats() *StatsStore            { return &StatsStore{s} }
