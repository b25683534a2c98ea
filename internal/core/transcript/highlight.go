package transcript

// Highlight marks the messages that belong to the newest section. Nothing is
// highlighted unless the viewport is anchored at the bottom; dimming of
// scrolled-away messages is then left to the renderer's visibility data.
//
// The result always has len(messages) entries and is meant to be recomputed
// on every render.
func Highlight(messages []Message, scrolledToBottom bool) []bool {
	highlighted := make([]bool, len(messages))
	if !scrolledToBottom {
		return highlighted
	}

	for i := len(messages) - 1; i >= 0; i-- {
		highlighted[i] = true
		if messages[i].SectionStart {
			break
		}
	}
	return highlighted
}
