package broker

import (
	"strings"
	"testing"
	"time"
)

func TestClockISO(t *testing.T) {
	c := NewClock()
	c.nowFunc = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	}

	got := c.ISO()
	if got != "2026-03-14T09:26:53.589Z" {
		t.Errorf("expected 2026-03-14T09:26:53.589Z, got %s", got)
	}
}

func TestNextCommandID(t *testing.T) {
	t.Run("unique within same millisecond", func(t *testing.T) {
		c := NewClock()
		fixed := time.UnixMilli(1700000000000)
		c.nowFunc = func() time.Time { return fixed }

		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := c.NextCommandID()
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
	})

	t.Run("embeds millisecond timestamp", func(t *testing.T) {
		c := NewClock()
		c.nowFunc = func() time.Time { return time.UnixMilli(1700000000123) }

		id := c.NextCommandID()
		if !strings.HasPrefix(id, "1700000000123_") {
			t.Errorf("expected timestamp prefix, got %s", id)
		}
	})

	t.Run("concurrent generation never collides", func(t *testing.T) {
		c := NewClock()
		const workers = 8
		const perWorker = 200

		ids := make(chan string, workers*perWorker)
		done := make(chan struct{})
		for w := 0; w < workers; w++ {
			go func() {
				for i := 0; i < perWorker; i++ {
					ids <- c.NextCommandID()
				}
				done <- struct{}{}
			}()
		}
		for w := 0; w < workers; w++ {
			<-done
		}
		close(ids)

		seen := make(map[string]bool)
		for id := range ids {
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
	})
}
