package scanner

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/claimstore/agent/internal/clock"
	agenterrors "github.com/claimstore/agent/internal/errors"
	"github.com/claimstore/agent/internal/logging"
	"github.com/claimstore/agent/internal/messagebody"
	"github.com/claimstore/agent/internal/naming"
	"github.com/claimstore/agent/internal/testutil"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newScanner(t *testing.T, fsys afero.Fs, clk clock.Clock, opts Options) *Scanner {
	t.Helper()
	s, err := New(fsys, clk, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func collectNames(s *Scanner, dirs []string, timeout time.Duration) []string {
	var names []string
	for e := range s.Enumerate(dirs, timeout) {
		names = append(names, e.File.Name().String())
	}
	sort.Strings(names)
	return names
}

func sorted(names ...string) []string {
	sort.Strings(names)
	return names
}

func TestEnumerate_LockExpiryScenario(t *testing.T) {
	fsys := afero.NewMemMapFs()
	clk := clock.NewFake(epoch)

	unlocked := testutil.Unlocked(t, "fresh", naming.KindTracked)
	lockedOld := testutil.Suffixed(t, "locked", naming.KindTracked, naming.StateLocked, epoch.Add(-time.Hour))
	gatheredOld := testutil.Suffixed(t, "gathered", naming.KindTracked, naming.StateGathered, epoch.Add(-time.Hour))
	releasedRecent := testutil.Suffixed(t, "released", naming.KindClaimed, naming.StateReleased, epoch.Add(-10*time.Minute))

	for _, n := range []naming.Name{unlocked, lockedOld, gatheredOld, releasedRecent} {
		testutil.DropBody(t, fsys, "/in", n)
	}
	testutil.DropFile(t, fsys, "/in", "invalid.file")
	testutil.DropFile(t, fsys, "/in", "some.other.invalid.file")

	s := newScanner(t, fsys, clk, Options{})
	got := collectNames(s, []string{"/in"}, 30*time.Minute)
	want := sorted(unlocked.String(), lockedOld.String(), gatheredOld.String())

	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Enumerate() = %v, want %v", got, want)
	}
}

func TestEnumerate_ExpiryBoundary(t *testing.T) {
	tests := []struct {
		name     string
		lockAge  time.Duration
		timeout  time.Duration
		eligible bool
	}{
		{"younger than timeout", 29 * time.Minute, 30 * time.Minute, false},
		{"exactly timeout", 30 * time.Minute, 30 * time.Minute, false},
		{"one millisecond past", 30*time.Minute + time.Millisecond, 30 * time.Minute, true},
		{"far past", 24 * time.Hour, time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			n := testutil.Suffixed(t, "body", naming.KindClaimed, naming.StateReleased, epoch.Add(-tt.lockAge))
			testutil.DropBody(t, fsys, "/in", n)

			s := newScanner(t, fsys, clock.NewFake(epoch), Options{})
			got := len(collectNames(s, []string{"/in"}, tt.timeout)) == 1
			if got != tt.eligible {
				t.Errorf("eligible = %v, want %v", got, tt.eligible)
			}
		})
	}
}

func TestEnumerate_KindDispatch(t *testing.T) {
	fsys := afero.NewMemMapFs()
	testutil.DropBody(t, fsys, "/in", testutil.Unlocked(t, "a", naming.KindTracked))
	testutil.DropBody(t, fsys, "/in", testutil.Unlocked(t, "b", naming.KindClaimed))

	s := newScanner(t, fsys, clock.NewFake(epoch), Options{})
	for e := range s.Enumerate([]string{"/in"}, time.Minute) {
		switch e.File.Kind() {
		case naming.KindTracked:
			if _, ok := e.Body.(*messagebody.Tracked); !ok {
				t.Errorf("%s body = %T, want *Tracked", e.File.Name(), e.Body)
			}
		case naming.KindClaimed:
			if _, ok := e.Body.(*messagebody.Claimed); !ok {
				t.Errorf("%s body = %T, want *Claimed", e.File.Name(), e.Body)
			}
		}
		if e.Dir != "/in" {
			t.Errorf("Dir = %q, want /in", e.Dir)
		}
	}
}

func TestEnumerate_SkipsNoise(t *testing.T) {
	fsys := afero.NewMemMapFs()
	good := testutil.Unlocked(t, "good", naming.KindTracked)
	testutil.DropBody(t, fsys, "/in", good)
	testutil.SetupDirs(t, fsys, "/in/"+testutil.Unlocked(t, "dir", naming.KindTracked).String())
	testutil.DropFile(t, fsys, "/in", "."+testutil.Unlocked(t, "copy", naming.KindTracked).String()+".partial")
	testutil.DropFile(t, fsys, "/in", testutil.Identity("upper")+".TRK")
	testutil.DropFile(t, fsys, "/in", "README")

	s := newScanner(t, fsys, clock.NewFake(epoch), Options{})
	got := collectNames(s, []string{"/in"}, time.Minute)
	if len(got) != 1 || got[0] != good.String() {
		t.Errorf("Enumerate() = %v, want [%s]", got, good)
	}
}

func TestEnumerate_UnreadableDirectoryIsSkipped(t *testing.T) {
	fsys := afero.NewMemMapFs()
	n := testutil.Unlocked(t, "ok", naming.KindClaimed)
	testutil.DropBody(t, fsys, "/second", n)

	var buf bytes.Buffer
	s := newScanner(t, fsys, clock.NewFake(epoch), Options{Logger: logging.NewWithWriter(&buf, logging.LevelWarn)})
	got := collectNames(s, []string{"/missing", "/second"}, time.Minute)

	if len(got) != 1 || got[0] != n.String() {
		t.Errorf("Enumerate() = %v, want [%s]", got, n)
	}
	if !strings.Contains(buf.String(), `"dir":"/missing"`) {
		t.Errorf("expected a warning for /missing, log = %q", buf.String())
	}
}

func TestEnumerate_Restartable(t *testing.T) {
	fsys := afero.NewMemMapFs()
	first := testutil.Unlocked(t, "first", naming.KindTracked)
	testutil.DropBody(t, fsys, "/in", first)

	s := newScanner(t, fsys, clock.NewFake(epoch), Options{})
	seq := s.Enumerate([]string{"/in"}, time.Minute)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if got := count(); got != 1 {
		t.Fatalf("first iteration = %d entries, want 1", got)
	}

	testutil.DropBody(t, fsys, "/in", testutil.Unlocked(t, "second", naming.KindTracked))
	if got := count(); got != 2 {
		t.Errorf("second iteration = %d entries, want 2", got)
	}

	for range seq {
		break
	}
}

func TestEnumerate_MinFileAge(t *testing.T) {
	fsys := afero.NewMemMapFs()
	clk := clock.NewFake(epoch)
	fresh := testutil.Unlocked(t, "fresh", naming.KindTracked)
	settled := testutil.Unlocked(t, "settled", naming.KindTracked)
	p1 := testutil.DropBody(t, fsys, "/in", fresh)
	p2 := testutil.DropBody(t, fsys, "/in", settled)
	if err := fsys.Chtimes(p1, epoch, epoch.Add(-time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := fsys.Chtimes(p2, epoch, epoch.Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	s := newScanner(t, fsys, clk, Options{MinFileAge: 10 * time.Second})
	got := collectNames(s, []string{"/in"}, time.Minute)
	if len(got) != 1 || got[0] != settled.String() {
		t.Errorf("Enumerate() = %v, want [%s]", got, settled)
	}

	clk.Advance(10 * time.Second)
	if got := collectNames(s, []string{"/in"}, time.Minute); len(got) != 2 {
		t.Errorf("after dwell Enumerate() = %v, want both files", got)
	}
}

func TestEnumerate_Exclude(t *testing.T) {
	fsys := afero.NewMemMapFs()
	trk := testutil.Unlocked(t, "t", naming.KindTracked)
	chk := testutil.Unlocked(t, "c", naming.KindClaimed)
	testutil.DropBody(t, fsys, "/in", trk)
	testutil.DropBody(t, fsys, "/in", chk)

	s := newScanner(t, fsys, clock.NewFake(epoch), Options{Exclude: []string{"*.chk"}})
	got := collectNames(s, []string{"/in"}, time.Minute)
	if len(got) != 1 || got[0] != trk.String() {
		t.Errorf("Enumerate() = %v, want [%s]", got, trk)
	}
}

func TestNew_InvalidExclude(t *testing.T) {
	_, err := New(afero.NewMemMapFs(), clock.NewFake(epoch), Options{Exclude: []string{"[abc"}})
	if !errors.Is(err, agenterrors.ErrConfigurationInvalid) {
		t.Errorf("New() error = %v, want ErrConfigurationInvalid", err)
	}
}

func TestInspect(t *testing.T) {
	fsys := afero.NewMemMapFs()
	held := testutil.Suffixed(t, "held", naming.KindTracked, naming.StateLocked, epoch.Add(-time.Minute))
	expired := testutil.Suffixed(t, "expired", naming.KindClaimed, naming.StateReleased, epoch.Add(-time.Hour))
	unlocked := testutil.Unlocked(t, "new", naming.KindTracked)
	testutil.DropBody(t, fsys, "/in", held)
	testutil.DropBody(t, fsys, "/in", expired)
	testutil.DropBody(t, fsys, "/in", unlocked)
	testutil.DropFile(t, fsys, "/in", "notes.txt")

	s := newScanner(t, fsys, clock.NewFake(epoch), Options{})
	obs := s.Inspect([]string{"/in"}, 30*time.Minute)

	want := map[string]struct {
		reason   string
		eligible bool
		state    string
	}{
		held.String():     {ReasonLockHeld, false, "locked"},
		expired.String():  {ReasonLockExpired, true, "released"},
		unlocked.String(): {ReasonUnlocked, true, "unlocked"},
		"notes.txt":       {ReasonInvalid, false, ""},
	}
	if len(obs) != len(want) {
		t.Fatalf("Inspect() returned %d observations, want %d", len(obs), len(want))
	}
	for _, o := range obs {
		w, ok := want[o.Name]
		if !ok {
			t.Errorf("unexpected observation %q", o.Name)
			continue
		}
		if o.Reason != w.reason || o.Eligible != w.eligible || o.State() != w.state {
			t.Errorf("%s: reason=%q eligible=%v state=%q, want %q %v %q",
				o.Name, o.Reason, o.Eligible, o.State(), w.reason, w.eligible, w.state)
		}
	}
}
