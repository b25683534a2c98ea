package transcript

import (
	"reflect"
	"testing"
)

func sections(flags ...bool) []Message {
	msgs := make([]Message, len(flags))
	for i, f := range flags {
		msgs[i] = Message{Text: "m", Origin: OriginServer, SectionStart: f}
	}
	return msgs
}

func TestHighlight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		messages []Message
		bottom   bool
		want     []bool
	}{
		{
			name:     "newest section",
			messages: sections(true, false, true, false, false),
			bottom:   true,
			want:     []bool{false, false, true, true, true},
		},
		{
			name:     "not anchored",
			messages: sections(true, false, true, false, false),
			bottom:   false,
			want:     []bool{false, false, false, false, false},
		},
		{
			name:     "no sections",
			messages: sections(false, false, false, false),
			bottom:   true,
			want:     []bool{true, true, true, true},
		},
		{
			name:     "last message starts section",
			messages: sections(false, true),
			bottom:   true,
			want:     []bool{false, true},
		},
		{
			name:     "empty",
			messages: nil,
			bottom:   true,
			want:     []bool{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Highlight(tt.messages, tt.bottom)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Highlight = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHighlightIgnoresVisibility(t *testing.T) {
	t.Parallel()

	msgs := sections(true, false)
	hidden := false
	msgs[1].Visible = &hidden
	if got := Highlight(msgs, false); got[0] || got[1] {
		t.Fatalf("visibility must not leak into the unanchored result: %v", got)
	}
}
