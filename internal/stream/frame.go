package stream

import "strings"

// FrameKind tags the framing convention a frame was recognised as.
type FrameKind int

// Frame is one classified line of the stream. Payload is the frame text with its convention's prefix
// removed.
type Frame struct {
	Kind    FrameKind
	Payload string
}

const (
	// FrameBlank is an empty or whitespace-only line.
	FrameBlank FrameKind = iota
	// FrameSSE is a line starting with "data: ". Its payload is trimmed.
	FrameSSE
	// FrameNumeric is a line made of a single digit, a colon and verbatim text, e.g. "0:Hello".
	FrameNumeric
	// FrameRaw is any other line, taken verbatim.
	FrameRaw
)

const (
	ssePrefix    = "data: "
	doneSentinel = "[DONE]"
)

// Classify tags line with the first matching convention, in this order: blank, "data: ", single digit
// followed by ':', raw text. Only one leading digit is recognised, so "12:xyz" is raw text.
func Classify(line string) Frame {
	switch {
	case strings.TrimSpace(line) == "":
		return Frame{Kind: FrameBlank}
	case strings.HasPrefix(line, ssePrefix):
		return Frame{Kind: FrameSSE, Payload: strings.TrimSpace(line[len(ssePrefix):])}
	case len(line) >= 2 && line[0] >= '0' && line[0] <= '9' && line[1] == ':':
		return Frame{Kind: FrameNumeric, Payload: line[2:]}
	default:
		return Frame{Kind: FrameRaw, Payload: line}
	}
}

func (k FrameKind) String() string {
	switch k {
	case FrameBlank:
		return "blank"
	case FrameSSE:
		return "sse"
	case FrameNumeric:
		return "numeric"
	case FrameRaw:
		return "raw"
	default:
		return "unknown"
	}
}
