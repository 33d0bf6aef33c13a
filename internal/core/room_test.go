package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegistryNewRoomAppendsInOrder(t *testing.T) {
	reg := NewRegistry()

	first, err := reg.NewRoom("127.0.0.1", 1234, "Test Room", "Alice", 1)
	if err != nil {
		t.Fatalf("new room: %v", err)
	}
	second, err := reg.NewRoom("10.0.0.2", 4321, "Other", "Bob", 10)
	if err != nil {
		t.Fatalf("new room: %v", err)
	}

	if first != 0 || second != 1 {
		t.Fatalf("unexpected ids %d, %d", first, second)
	}
	if reg.Count() != 2 {
		t.Fatalf("expected 2 rooms, got %d", reg.Count())
	}

	rooms := reg.Snapshot()
	want := Room{HostAddress: "127.0.0.1", HostPort: 1234, Name: "Test Room", HostName: "Alice", Capacity: 1}
	if rooms[0] != want {
		t.Fatalf("unexpected first room: %+v", rooms[0])
	}
	if rooms[1].Name != "Other" {
		t.Fatalf("unexpected second room: %+v", rooms[1])
	}
}

func TestRegistryRejectsCapacityBelowOne(t *testing.T) {
	reg := NewRegistry()

	for _, capacity := range []int{0, -3} {
		_, err := reg.NewRoom("127.0.0.1", 1, "r", "h", capacity)
		if !errors.Is(err, ErrInvalidRoomSpec) {
			t.Fatalf("expected ErrInvalidRoomSpec for capacity %d, got %v", capacity, err)
		}
		if ErrorCode(err) != ErrCodeInvalidRoomSpec {
			t.Fatalf("unexpected code %q", ErrorCode(err))
		}
	}
	if reg.Count() != 0 {
		t.Fatalf("rejected rooms must not be stored, got %d", reg.Count())
	}
}

func TestRegistryDuplicatesAccepted(t *testing.T) {
	reg := NewRegistry()
	for range 3 {
		if _, err := reg.NewRoom("1.1.1.1", 1, "same", "same", 1); err != nil {
			t.Fatalf("new room: %v", err)
		}
	}
	if reg.Count() != 3 {
		t.Fatalf("expected 3 rooms, got %d", reg.Count())
	}
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.NewRoom("1.1.1.1", 1, "a", "b", 1); err != nil {
		t.Fatalf("new room: %v", err)
	}
	snap := reg.Snapshot()
	snap[0].Name = "mutated"
	if reg.Snapshot()[0].Name != "a" {
		t.Fatal("snapshot must not alias registry storage")
	}
}

func TestRegistryConcurrentNewRoom(t *testing.T) {
	const n = 200
	reg := NewRegistry()

	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func(i int) {
			defer wg.Done()
			if _, err := reg.NewRoom("10.0.0.1", 1000+i, fmt.Sprintf("room %d", i), fmt.Sprintf("host%d", i), 1); err != nil {
				t.Errorf("new room %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if reg.Count() != n {
		t.Fatalf("expected %d rooms, got %d", n, reg.Count())
	}

	seen := make(map[int]bool, n)
	for _, room := range reg.Snapshot() {
		i := room.HostPort - 1000
		if room.Name != fmt.Sprintf("room %d", i) || room.HostName != fmt.Sprintf("host%d", i) || room.Capacity != 1 {
			t.Fatalf("corrupted room %+v", room)
		}
		if seen[i] {
			t.Fatalf("room %d stored twice", i)
		}
		seen[i] = true
	}
}

func TestRegistrySerializeAllIsConsistentUnderWrites(t *testing.T) {
	const n = 100
	reg := NewRegistry()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range n {
			if _, err := reg.NewRoom("10.0.0.1", i, fmt.Sprintf("room %d", i), "host", 1); err != nil {
				t.Errorf("new room: %v", err)
			}
		}
	}()

	last := 0
	for {
		select {
		case <-done:
			rooms, err := ParseRoomInfo(reg.SerializeAll())
			if err != nil {
				t.Fatalf("parse final snapshot: %v", err)
			}
			if len(rooms) != n {
				t.Fatalf("expected %d rooms, got %d", n, len(rooms))
			}
			return
		default:
		}

		rooms, err := ParseRoomInfo(reg.SerializeAll())
		if err != nil {
			t.Fatalf("parse snapshot: %v", err)
		}
		if len(rooms) < last {
			t.Fatalf("snapshot shrank from %d to %d", last, len(rooms))
		}
		last = len(rooms)
		// Single writer, so every snapshot is a prefix of the append sequence.
		for i, room := range rooms {
			if room.HostPort != i || room.Name != fmt.Sprintf("room %d", i) {
				t.Fatalf("snapshot is not a prefix at %d: %+v", i, room)
			}
		}
	}
}
