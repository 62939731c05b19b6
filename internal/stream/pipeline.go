package stream

import (
	"errors"
	"io"
	"iter"
	"log/slog"
)

// Pipeline chains the decoder, splitter, classifier and extractor for one stream. It is not safe for
// concurrent use; a stream is consumed by a single goroutine.
type Pipeline struct {
	decoder  *Decoder
	splitter Splitter

	logger *slog.Logger
}

// NewPipeline creates a pipeline with fresh decoder and carry-over state.
func NewPipeline(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		decoder: NewDecoder(),
		logger:  logger,
	}
}

// Feed processes one chunk and returns the deltas of every frame it completed, in order.
func (p *Pipeline) Feed(chunk []byte) []Delta {
	return p.frames(p.splitter.Push(p.decoder.Decode(chunk)))
}

// Finish flushes the decoder and the carry-over at end of stream.
func (p *Pipeline) Finish() []Delta {
	deltas := p.frames(p.splitter.Push(p.decoder.Flush()))
	if frame, ok := p.splitter.Flush(); ok {
		deltas = append(deltas, p.frames([]string{frame})...)
	}
	return deltas
}

func (p *Pipeline) frames(lines []string) []Delta {
	if len(lines) == 0 {
		return nil
	}
	deltas := make([]Delta, 0, len(lines))
	for _, line := range lines {
		f := Classify(line)
		d := Extract(f)
		if d.Fallback {
			p.logger.Debug("Frame payload is not an envelope, using it as text",
				slog.String("payload", f.Payload))
		}
		deltas = append(deltas, d)
	}
	return deltas
}

// Deltas reads r to the end and yields the delta of every frame in arrival order. A read error other
// than io.EOF is yielded once and ends the sequence. Stopping the iteration early leaves r open; the
// caller closes it.
func Deltas(r ChunkReader, logger *slog.Logger) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		p := NewPipeline(logger)
		for {
			chunk, err := r.Read()
			if len(chunk) > 0 {
				for _, d := range p.Feed(chunk) {
					if !yield(d, nil) {
						return
					}
				}
			}
			if err == nil {
				continue
			}
			if !errors.Is(err, io.EOF) {
				yield(Delta{}, err)
				return
			}
			for _, d := range p.Finish() {
				if !yield(d, nil) {
					return
				}
			}
			return
		}
	}
}
