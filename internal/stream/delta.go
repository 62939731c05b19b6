package stream

import (
	"encoding/json"

	goopenai "github.com/sashabaranov/go-openai"
)

// DeltaKind is the effect a frame has on the transcript.
type DeltaKind int

// Delta is the normalised result of one frame.
type Delta struct {
	Kind DeltaKind
	Text string

	// Fallback is set when an SSE payload could not be decoded as an envelope and was taken as text.
	Fallback bool
}

const (
	// DeltaNoOp leaves the transcript untouched.
	DeltaNoOp DeltaKind = iota
	// DeltaContent appends Text to the in-flight assistant message.
	DeltaContent
	// DeltaEnd marks the logical end of the answer, independent of the transport ending.
	DeltaEnd
)

// Extract turns a classified frame into a delta. An SSE payload is decoded as an OpenAI-style chunk
// envelope; if it does not decode, the payload itself is the text. An envelope without delta content,
// such as a role-only chunk, is a no-op. Empty text is never reported as content.
func Extract(f Frame) Delta {
	switch f.Kind {
	case FrameSSE:
		if f.Payload == doneSentinel {
			return Delta{Kind: DeltaEnd}
		}
		var envelope goopenai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(f.Payload), &envelope); err != nil {
			return content(f.Payload, true)
		}
		if len(envelope.Choices) == 0 {
			return Delta{Kind: DeltaNoOp}
		}
		return content(envelope.Choices[0].Delta.Content, false)
	case FrameNumeric, FrameRaw:
		return content(f.Payload, false)
	default:
		return Delta{Kind: DeltaNoOp}
	}
}

func content(text string, fallback bool) Delta {
	if text == "" {
		return Delta{Kind: DeltaNoOp}
	}
	return Delta{Kind: DeltaContent, Text: text, Fallback: fallback}
}

func (k DeltaKind) String() string {
	switch k {
	case DeltaNoOp:
		return "noop"
	case DeltaContent:
		return "content"
	case DeltaEnd:
		return "end"
	default:
		return "unknown"
	}
}
