// PACKAGE CHANNELSTORE IMPLEMENTS C3, THE FIXED 8-CHANNEL RECORD STORE.
//
// GROUNDED ON internal/storage/jobs.go'S JobsMutex PATTERN: A SINGLE COARSE MUTEX GUARDS ALL
// MUTATING ACCESS TO THE UNDERLYING ARRAY, SCALED DOWN HERE FROM A MAP OF JOBS TO A FIXED-SIZE
// ARRAY OF CHANNELS (SPEC_FULL.MD §4.3). READERS ALWAYS RECEIVE A Snapshot() COPY, NEVER A LIVE
// POINTER INTO THE STORE.
package channelstore

import (
	"fmt"
	"sync"

	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/utils"
)

// NUMCHANNELS IS THE FIXED CHANNEL COUNT THE CONTROLLER SUPPORTS
const NumChannels = 8

// STORE HOLDS THE FIXED ARRAY OF CHANNEL RECORDS BEHIND ONE COARSE MUTEX
type Store struct {
	mu       sync.Mutex
	channels [NumChannels]models.Channel
}

// NEWSTORE BUILDS A STORE SEEDED WITH SAFE DEFAULTS FOR ALL NumChannels SLOTS
func NewStore() *Store {
	s := &Store{}
	for i := 0; i < NumChannels; i++ {
		s.channels[i] = *models.NewDefaultChannel(i)
	}
	return s
}

// GET RETURNS A SNAPSHOT OF THE CHANNEL AT id, OR ErrInvalidParam IF OUT OF RANGE
func (s *Store) Get(id int) (models.Channel, error) {
	if id < 0 || id >= NumChannels {
		return models.Channel{}, utils.NewControllerError(utils.ErrInvalidParam,
			fmt.Sprintf("channel %d out of range [0,%d)", id, NumChannels), id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channels[id].Snapshot(), nil
}

// ALL RETURNS SNAPSHOTS OF ALL CHANNELS, INDEX-ORDERED
func (s *Store) All() [NumChannels]models.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [NumChannels]models.Channel
	for i := range s.channels {
		out[i] = s.channels[i].Snapshot()
	}
	return out
}

// UPDATE APPLIES mutate TO THE CHANNEL AT id UNDER THE STORE LOCK AND RETURNS THE RESULTING
// SNAPSHOT. mutate RECEIVES A POINTER VALID ONLY FOR THE DURATION OF THE CALL.
func (s *Store) Update(id int, mutate func(*models.Channel) error) (models.Channel, error) {
	if id < 0 || id >= NumChannels {
		return models.Channel{}, utils.NewControllerError(utils.ErrInvalidParam,
			fmt.Sprintf("channel %d out of range [0,%d)", id, NumChannels), id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := mutate(&s.channels[id]); err != nil {
		return models.Channel{}, err
	}
	return s.channels[id].Snapshot(), nil
}

// REPLACE OVERWRITES THE WHOLE RECORD AT id, PRESERVING RUNTIME-ONLY FIELDS (LOCK, ERROR
// COUNT, LAST WATERING) UNLESS THE CALLER EXPLICITLY SUPPLIES THEM.
func (s *Store) Replace(id int, next models.Channel) (models.Channel, error) {
	if id < 0 || id >= NumChannels {
		return models.Channel{}, utils.NewControllerError(utils.ErrInvalidParam,
			fmt.Sprintf("channel %d out of range [0,%d)", id, NumChannels), id)
	}
	next.ID = id
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.channels[id]
	if next.Lock == (models.HydraulicLock{}) {
		next.Lock = prev.Lock
	}
	if next.ErrorCount == 0 {
		next.ErrorCount = prev.ErrorCount
	}
	if next.LastWateringEpoch == 0 {
		next.LastWateringEpoch = prev.LastWateringEpoch
	}
	s.channels[id] = next
	return s.channels[id].Snapshot(), nil
}

// ISAUTOVALID IS A CONVENIENCE WRAPPER OVER Get + models.Channel.IsAutoValid
func (s *Store) IsAutoValid(id int) (bool, error) {
	ch, err := s.Get(id)
	if err != nil {
		return false, err
	}
	return ch.IsAutoValid(), nil
}
