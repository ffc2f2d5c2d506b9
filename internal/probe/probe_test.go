package probe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fakeChecker(results map[string]error) *Checker {
	return &Checker{
		timeout: time.Second,
		run: func(_ context.Context, argv ...string) error {
			key := argv[0]
			for _, a := range argv[1:] {
				key += " " + a
			}
			return results[key]
		},
	}
}

func TestAvailableSources_PrefersDmesg(t *testing.T) {
	t.Parallel()

	c := fakeChecker(map[string]error{
		"dmesg":              nil,
		"journalctl -k -n 1": nil,
	})
	got := c.AvailableSources(context.Background())
	if len(got) != 2 || got[0] != "dmesg" || got[1] != "journal" {
		t.Errorf("AvailableSources() = %v, want [dmesg journal]", got)
	}
}

func TestAvailableSources_JournalOnly(t *testing.T) {
	t.Parallel()

	c := fakeChecker(map[string]error{
		"dmesg":              errors.New("exit status 1"),
		"journalctl -k -n 1": nil,
	})
	got := c.AvailableSources(context.Background())
	if len(got) != 1 || got[0] != "journal" {
		t.Errorf("AvailableSources() = %v, want [journal]", got)
	}
}

func TestAvailableSources_NoneAvailable(t *testing.T) {
	t.Parallel()

	c := fakeChecker(map[string]error{
		"dmesg":              errors.New("not found"),
		"journalctl -k -n 1": errors.New("not found"),
	})
	if got := c.AvailableSources(context.Background()); len(got) != 0 {
		t.Errorf("AvailableSources() = %v, want empty", got)
	}
}

func TestCanWatchDmesg_TimeoutCountsAsSuccess(t *testing.T) {
	t.Parallel()

	c := fakeChecker(map[string]error{
		"dmesg -w": context.DeadlineExceeded,
	})
	if !c.CanWatchDmesg(context.Background()) {
		t.Error("timeout on dmesg -w should count as success")
	}

	c = fakeChecker(map[string]error{
		"dmesg -w": errors.New("exit status 1"),
	})
	if c.CanWatchDmesg(context.Background()) {
		t.Error("nonzero exit on dmesg -w should fail the check")
	}
}
