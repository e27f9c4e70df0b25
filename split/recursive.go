// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package split

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/indexit/core"
	"github.com/tmc/langchaingo/textsplitter"
)

// Recursive adapts langchaingo's recursive-character splitter to the
// Splitter interface, annotating each chunk with a markdown heading path
// and a rough token estimate.
type Recursive struct {
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

var _ Splitter = (*Recursive)(nil)

// Option configures a Recursive splitter.
type Option func(*Recursive)

// WithChunkSize sets the target chunk size in characters. Default 1500.
func WithChunkSize(size int) Option {
	return func(r *Recursive) {
		if size > 0 {
			r.chunkSize = size
		}
	}
}

// WithChunkOverlap sets the overlap between adjacent chunks. Default 150.
func WithChunkOverlap(overlap int) Option {
	return func(r *Recursive) {
		if overlap >= 0 {
			r.chunkOverlap = overlap
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recursive) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecursive creates a recursive-character splitter with defaults.
func NewRecursive(opts ...Option) *Recursive {
	r := &Recursive{
		chunkSize:    1500,
		chunkOverlap: 150,
		logger:       slog.Default().With("component", "splitter"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Split chunks content, or each structural block separately when blocks are
// provided.
func (r *Recursive) Split(ctx context.Context, content string, blocks []string) ([]core.Chunk, error) {
	if len(blocks) > 0 {
		var chunks []core.Chunk
		for _, block := range blocks {
			blockChunks, err := r.splitText(block)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, blockChunks...)
		}
		r.logger.Debug("split blocks", "blocks", len(blocks), "chunks", len(chunks))
		return chunks, nil
	}

	chunks, err := r.splitText(content)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("split content", "length", len(content), "chunks", len(chunks))
	return chunks, nil
}

func (r *Recursive) splitText(text string) ([]core.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(r.chunkSize),
		textsplitter.WithChunkOverlap(r.chunkOverlap),
	)

	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	headings := headingIndex(text)
	chunks := make([]core.Chunk, 0, len(parts))
	searchFrom := 0
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}

		// Locate the chunk in the original text to resolve its heading path.
		// Overlapping chunks advance the search window monotonically.
		offset := strings.Index(text[searchFrom:], trimmed)
		position := searchFrom
		if offset >= 0 {
			position = searchFrom + offset
			searchFrom = position + 1
		}

		chunks = append(chunks, core.Chunk{
			Text:          trimmed,
			TokenEstimate: estimateTokens(trimmed),
			HeadingPath:   headings.pathAt(position),
			Category:      categorize(trimmed),
		})
	}
	return chunks, nil
}

// estimateTokens approximates the token count of text. Four characters per
// token is the usual rule of thumb for English prose.
func estimateTokens(text string) int {
	est := len(text) / 4
	if est < 1 {
		est = 1
	}
	return est
}

func categorize(text string) string {
	if strings.HasPrefix(text, "```") {
		return "code"
	}
	return "text"
}

// headingEntry records one markdown heading and its byte offset.
type headingEntry struct {
	offset int
	level  int
	title  string
}

type headingList []headingEntry

// headingIndex collects the markdown headings of text in document order.
func headingIndex(text string) headingList {
	var entries headingList
	offset := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			level := 0
			for level < len(trimmed) && trimmed[level] == '#' {
				level++
			}
			title := strings.TrimSpace(trimmed[level:])
			if title != "" && level <= 6 {
				entries = append(entries, headingEntry{offset: offset, level: level, title: title})
			}
		}
		offset += len(line) + 1
	}
	return entries
}

// pathAt returns the heading path active at the given byte offset, formed by
// the nearest preceding heading chain, e.g. "Guide > Setup > Linux".
func (h headingList) pathAt(position int) string {
	var stack []headingEntry
	for _, entry := range h {
		if entry.offset > position {
			break
		}
		for len(stack) > 0 && stack[len(stack)-1].level >= entry.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, entry)
	}
	if len(stack) == 0 {
		return ""
	}
	titles := make([]string, len(stack))
	for i, entry := range stack {
		titles[i] = entry.title
	}
	return strings.Join(titles, " > ")
}
