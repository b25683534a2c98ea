package transcript

import (
	"reflect"
	"strings"
	"testing"

	"github.com/asynkron/architerm/internal/core/schema"
)

func TestStoreKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AppendUser("a")
	s.AppendServer(ServerMessage{Text: "b", Display: DisplayWrap})
	s.AppendUser("c")

	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	wantText := []string{"a", "b", "c"}
	wantOrigin := []Origin{OriginUser, OriginServer, OriginUser}
	for i, msg := range msgs {
		if msg.Text != wantText[i] || msg.Origin != wantOrigin[i] {
			t.Fatalf("message %d = %+v, want text %q origin %s", i, msg, wantText[i], wantOrigin[i])
		}
	}
}

func TestAppendUserDefaults(t *testing.T) {
	t.Parallel()

	msg := NewStore().AppendUser("  look around  ")
	if msg.Display != DisplayWrap || msg.SectionStart || msg.Origin != OriginUser {
		t.Fatalf("unexpected user message: %+v", msg)
	}
	if msg.Text != "  look around  " {
		t.Fatalf("user text should be stored as typed, got %q", msg.Text)
	}
	if msg.Visible != nil {
		t.Fatalf("visibility should start unset")
	}
}

func TestAppendServerTrimsUnlessFit(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fit := s.AppendServer(ServerMessage{Text: "  x  ", Display: DisplayFit})
	if fit.Text != "  x  " {
		t.Fatalf("fit text changed: %q", fit.Text)
	}
	for _, mode := range []DisplayMode{DisplayWrap, DisplayBox, DisplayUnderline} {
		msg := s.AppendServer(ServerMessage{Text: "  x  ", Display: mode, Section: true})
		if msg.Text != "x" {
			t.Fatalf("%s text not trimmed: %q", mode, msg.Text)
		}
		if !msg.SectionStart {
			t.Fatalf("%s lost its section flag", mode)
		}
	}
}

func TestSetVisibleTouchesOnlyTarget(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.AppendUser("a")
	s.AppendUser("b")
	before := s.Messages()

	if !s.SetVisible(1, false) {
		t.Fatalf("expected SetVisible to accept index 1")
	}
	if s.SetVisible(2, true) || s.SetVisible(-1, true) {
		t.Fatalf("out of range indexes must be ignored")
	}

	after := s.Messages()
	if after[0].Visible != nil {
		t.Fatalf("message 0 should be untouched")
	}
	if after[1].Visible == nil || *after[1].Visible {
		t.Fatalf("message 1 should be reported invisible")
	}
	after[1].Visible = nil
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("SetVisible changed more than the visibility flag")
	}

	s.SetVisible(1, true)
	s.SetVisible(0, false)
	s.SetVisible(1, false)
	if v := s.At(1).Visible; v == nil || *v {
		t.Fatalf("last write should win")
	}
}

func TestParseDisplayMode(t *testing.T) {
	t.Parallel()

	for _, mode := range []DisplayMode{DisplayWrap, DisplayBox, DisplayUnderline, DisplayFit} {
		got, err := ParseDisplayMode(mode.String())
		if err != nil || got != mode {
			t.Fatalf("ParseDisplayMode(%q) = %v, %v", mode.String(), got, err)
		}
	}
	if _, err := ParseDisplayMode("marquee"); err == nil {
		t.Fatalf("expected an error for an unknown mode")
	}
}

func TestDisplayModesMatchWireNames(t *testing.T) {
	t.Parallel()

	all := []DisplayMode{DisplayWrap, DisplayBox, DisplayUnderline, DisplayFit}
	if len(schema.DisplayModes) != len(all) {
		t.Fatalf("schema accepts %v, transcript knows %d modes", schema.DisplayModes, len(all))
	}
	for i, name := range schema.DisplayModes {
		got, err := ParseDisplayMode(name)
		if err != nil {
			t.Fatalf("schema display %q does not parse: %v", name, err)
		}
		if got != all[i] || got.String() != name {
			t.Fatalf("schema display %q parsed as %v", name, got)
		}
	}
}

func TestLayoutDispatch(t *testing.T) {
	t.Parallel()

	box := Message{Text: "hi", Display: DisplayBox}.Layout(20)
	if box.Fit || !strings.HasPrefix(box.Text, "┏") {
		t.Fatalf("unexpected box layout: %+v", box)
	}

	under := Message{Text: "Hall", Display: DisplayUnderline}.Layout(20)
	if under.Text != "Hall\n━━━━" {
		t.Fatalf("unexpected underline layout: %q", under.Text)
	}

	fit := Message{Text: "  art  ", Display: DisplayFit}.Layout(3)
	if !fit.Fit || fit.Text != "  art  " {
		t.Fatalf("unexpected fit layout: %+v", fit)
	}

	wrap := Message{Text: "one two three\n\nfour", Display: DisplayWrap}.Layout(7)
	if wrap.Text != "one two\nthree\n\nfour" {
		t.Fatalf("unexpected wrap layout: %q", wrap.Text)
	}
}
