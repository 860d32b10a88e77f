package chat

// SweepStale finalizes messages left mid-stream by a previous process.
// Placeholders that never received content are dropped; the rest keep
// their partial content and are frozen. The global streaming flag is
// cleared since no stream can survive a restart.
func SweepStale(s State) State {
	next := s.Clone()
	next.Messages = sweepMessages(next.Messages)
	for i := range next.Sessions {
		next.Sessions[i].Messages = sweepMessages(next.Sessions[i].Messages)
	}
	next.IsStreaming = false
	return next
}

// StaleCount reports how many messages SweepStale would touch.
func StaleCount(s State) int {
	n := 0
	seen := make(map[string]bool)
	count := func(msgs []Message) {
		for _, m := range msgs {
			if m.Streaming && !seen[m.ID] {
				seen[m.ID] = true
				n++
			}
		}
	}
	count(s.Messages)
	for _, sess := range s.Sessions {
		count(sess.Messages)
	}
	return n
}

func sweepMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Streaming {
			if m.IsEmpty() {
				continue
			}
			m.Streaming = false
		}
		out = append(out, m)
	}
	return out
}
