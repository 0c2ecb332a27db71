package core

import (
	"fmt"
	"testing"

	"github.com/avrile/opsroom/internal/domain"
)

func playingRoom(t *testing.T, s *Store) string {
	t.Helper()
	code := pair(t, s, "host-1", "conn-2")
	readyUp(t, s, code, "host-1", "conn-2")
	if _, err := s.StartGame(code, "host-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	return code
}

func TestUpdateStepMonotonic(t *testing.T) {
	s := NewStore(0)
	code := playingRoom(t, s)

	_, step, err := s.UpdateStep(code, 3)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if step != 3 {
		t.Fatalf("step = %d, want 3", step)
	}

	// Regressive update is clamped; the effective step stays at 3.
	_, step, _ = s.UpdateStep(code, 1)
	if step != 3 {
		t.Fatalf("step after regression = %d, want 3", step)
	}

	_, step, _ = s.UpdateStep(code, 4)
	if step != 4 {
		t.Fatalf("step = %d, want 4", step)
	}
}

func TestUpdateStepUnknownRoom(t *testing.T) {
	s := NewStore(0)
	if _, _, err := s.UpdateStep("ZZZZZ", 1); err != ErrRoomNotFound {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestUpdateMission(t *testing.T) {
	s := NewStore(0)
	code := playingRoom(t, s)

	room, err := s.UpdateMission(code, 2)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if room.CurrentMission != 2 {
		t.Fatalf("mission = %d, want 2", room.CurrentMission)
	}
}

func TestCompleteCityAppendOnly(t *testing.T) {
	s := NewStore(0)
	code := playingRoom(t, s)

	room, err := s.CompleteCity(code, "paris")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(room.CompletedCities) != 1 || room.CompletedCities[0] != "paris" {
		t.Fatalf("cities = %v, want [paris]", room.CompletedCities)
	}

	// Completing the same city twice does not duplicate the marker.
	room, _ = s.CompleteCity(code, "paris")
	if len(room.CompletedCities) != 1 {
		t.Fatalf("cities = %v after repeat, want [paris]", room.CompletedCities)
	}
}

func TestCompleteAllCitiesFinishesSession(t *testing.T) {
	s := NewStore(0)
	code := playingRoom(t, s)

	s.CompleteCity(code, "paris")
	room, _ := s.CompleteCity(code, "tokyo")
	if room.Status != domain.StatusPlaying {
		t.Fatalf("status = %q after 2 of 3 cities, want playing", room.Status)
	}

	room, _ = s.CompleteCity(code, "new-york")
	if room.Status != domain.StatusFinished {
		t.Fatalf("status = %q after all cities, want finished", room.Status)
	}
}

func TestCompleteCityNotFinishedWhileWaiting(t *testing.T) {
	s := NewStore(0)
	code := pair(t, s, "host-1", "conn-2")

	s.CompleteCity(code, "paris")
	s.CompleteCity(code, "tokyo")
	room, _ := s.CompleteCity(code, "new-york")
	if room.Status != domain.StatusWaiting {
		t.Fatalf("status = %q, waiting rooms must not finish", room.Status)
	}
}

func TestAppendChatBounded(t *testing.T) {
	s := NewStore(5)
	code := pair(t, s, "host-1", "conn-2")

	for i := 0; i < 8; i++ {
		if _, err := s.AppendChat(code, "Ava", fmt.Sprintf("msg %d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	s.mu.RLock()
	chat := s.rooms[code].Chat
	s.mu.RUnlock()

	if len(chat) != 5 {
		t.Fatalf("chat length = %d, want 5", len(chat))
	}
	if chat[0].Message != "msg 3" || chat[4].Message != "msg 7" {
		t.Fatalf("chat window = [%s .. %s], want [msg 3 .. msg 7]", chat[0].Message, chat[4].Message)
	}
}

func TestAppendChatUnknownRoom(t *testing.T) {
	s := NewStore(0)
	if _, err := s.AppendChat("ZZZZZ", "Ava", "hello"); err != ErrRoomNotFound {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}
