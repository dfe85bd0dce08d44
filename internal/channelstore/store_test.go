package channelstore

import (
	"sync"
	"testing"

	"github.com/nickheyer/Crepes/internal/models"
	"github.com/nickheyer/Crepes/internal/utils"
)

func TestNewStore_SeedsAllChannels(t *testing.T) {
	s := NewStore()
	all := s.All()
	for i, ch := range all {
		if ch.ID != i {
			t.Fatalf("channel %d has ID %d, want %d", i, ch.ID, i)
		}
	}
}

func TestStore_GetOutOfRange(t *testing.T) {
	s := NewStore()
	if _, err := s.Get(-1); err == nil {
		t.Fatal("Get(-1) = nil error, want InvalidParam")
	}
	if _, err := s.Get(NumChannels); err == nil {
		t.Fatal("Get(NumChannels) = nil error, want InvalidParam")
	}
	_, err := s.Get(NumChannels)
	cerr, ok := err.(*utils.ControllerError)
	if !ok || cerr.Code != utils.ErrInvalidParam {
		t.Fatalf("Get(NumChannels) error = %v, want InvalidParam ControllerError", err)
	}
}

func TestStore_Update(t *testing.T) {
	s := NewStore()
	updated, err := s.Update(2, func(ch *models.Channel) error {
		ch.DisplayName = "tomatoes"
		return nil
	})
	if err != nil {
		t.Fatalf("Update(2) error: %v", err)
	}
	if updated.DisplayName != "tomatoes" {
		t.Fatalf("Update(2) result DisplayName = %q, want tomatoes", updated.DisplayName)
	}

	got, err := s.Get(2)
	if err != nil {
		t.Fatalf("Get(2) after Update error: %v", err)
	}
	if got.DisplayName != "tomatoes" {
		t.Fatalf("Get(2) DisplayName = %q after Update, want tomatoes", got.DisplayName)
	}
}

func TestStore_Replace(t *testing.T) {
	s := NewStore()
	next := models.Channel{DisplayName: "herbs"}
	updated, err := s.Replace(5, next)
	if err != nil {
		t.Fatalf("Replace(5) error: %v", err)
	}
	if updated.ID != 5 {
		t.Fatalf("Replace(5) result ID = %d, want 5 (caller-supplied ID must be overwritten)", updated.ID)
	}
	if updated.DisplayName != "herbs" {
		t.Fatalf("Replace(5) DisplayName = %q, want herbs", updated.DisplayName)
	}
}

func TestStore_GetReturnsSnapshotNotLivePointer(t *testing.T) {
	s := NewStore()
	ch, _ := s.Get(0)
	ch.DisplayName = "mutated copy"

	fresh, _ := s.Get(0)
	if fresh.DisplayName == "mutated copy" {
		t.Fatal("mutating a Get() result leaked back into the store — Get() must return a copy")
	}
}

func TestStore_ConcurrentUpdate(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = s.Update(1, func(ch *models.Channel) error {
				ch.ErrorCount++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := s.Get(1)
	if got.ErrorCount != n {
		t.Fatalf("ErrorCount after %d concurrent updates = %d, want %d", n, got.ErrorCount, n)
	}
}
