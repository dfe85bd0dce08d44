package storage

import (
	"github.com/nickheyer/Crepes/internal/channelstore"
	"github.com/nickheyer/Crepes/internal/models"
)

// HYDRATESTORE LOADS ALL PERSISTED CHANNEL RECORDS INTO cs, LEAVING ANY SLOT WITHOUT A
// PERSISTED ROW AT ITS models.NewDefaultChannel ZERO STATE.
func (s *Store) HydrateStore(cs *channelstore.Store) error {
	persisted, err := s.LoadChannels()
	if err != nil {
		return err
	}

	for id, ch := range persisted {
		if _, err := cs.Replace(id, ch); err != nil {
			s.logger.Warn("storage: skipping out-of-range persisted channel", map[string]any{"id": id, "error": err.Error()})
		}
	}

	s.logger.Info("storage: hydrated channel store", map[string]any{"loadedCount": len(persisted)})
	return nil
}

// PERSISTALL SAVES EVERY CHANNEL CURRENTLY IN cs, FOR USE ON A PERIODIC CHECKPOINT OR SHUTDOWN
func (s *Store) PersistAll(cs *channelstore.Store) error {
	all := cs.All()
	for _, ch := range all {
		if err := s.SaveChannel(ch); err != nil {
			return err
		}
	}
	return nil
}

// PERSISTONE SAVES A SINGLE CHANNEL, FOR USE AFTER A channelstore.Store.Update CALL
func (s *Store) PersistOne(ch models.Channel) error {
	return s.SaveChannel(ch)
}
