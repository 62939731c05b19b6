package stream

import "strings"

// Splitter cuts decoded text into newline-delimited frames. The unterminated tail of the text is kept as
// carry-over until a later Push completes it.
type Splitter struct {
	carry string
}

// Push appends text to the carry-over and returns every frame it completed. The remainder after the
// last newline, possibly empty, becomes the new carry-over.
func (s *Splitter) Push(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.Split(s.carry+text, "\n")
	s.carry = lines[len(lines)-1]

	frames := lines[:len(lines)-1]
	for i, frame := range frames {
		frames[i] = strings.TrimSuffix(frame, "\r")
	}
	return frames
}

// Flush returns the carry-over as a final frame at end of stream, if it is not empty.
func (s *Splitter) Flush() (string, bool) {
	frame := strings.TrimSuffix(s.carry, "\r")
	s.carry = ""
	return frame, frame != ""
}

// Pending returns the text currently held as carry-over.
func (s *Splitter) Pending() string {
	return s.carry
}
