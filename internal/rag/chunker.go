// Package rag holds the ingestion pipeline pieces: text chunking and
// batched embedding.
package rag

import (
	"strings"

	"github.com/harshkolte01/tutor-bot/internal/model"
)

const (
	// ChunkSize is the target characters per chunk.
	ChunkSize = 1000
	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap = 200
)

// Page is one page of extracted text. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// ChunkPlainText splits a plain string into overlapping chunks. Page
// metadata is left unset. Windows that trim to nothing are dropped without
// consuming an index.
func ChunkPlainText(text string) []model.TextChunk {
	runes := []rune(text)
	var chunks []model.TextChunk
	start := 0
	idx := 0

	for start < len(runes) {
		end := start + ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, model.TextChunk{Index: idx, Content: content})
			idx++
		}
		if end >= len(runes) {
			break
		}
		start = end - ChunkOverlap
	}
	return chunks
}

// pageBuffer accumulates page text until a chunk's worth is available.
// pageStart/pageEnd track which pages contributed to the buffered text.
type pageBuffer struct {
	text      []rune
	pageStart int
	pageEnd   int
}

func (b pageBuffer) full() bool {
	return len(b.text) >= ChunkSize
}

// flush cuts one chunk off the front of the buffer and reseeds the
// remainder with the overlap tail. The new buffer's start page is
// approximated as the old buffer's end page: the overlap text most likely
// belongs there, and character-exact page attribution is intentionally not
// attempted.
func (b pageBuffer) flush(idx int) (model.TextChunk, pageBuffer, bool) {
	content := strings.TrimSpace(string(b.text[:ChunkSize]))
	next := pageBuffer{
		text:      append([]rune(nil), b.text[ChunkSize-ChunkOverlap:]...),
		pageStart: b.pageEnd,
		pageEnd:   b.pageEnd,
	}
	if content == "" {
		return model.TextChunk{}, next, false
	}
	chunk := model.TextChunk{
		Index:     idx,
		Content:   content,
		PageStart: b.pageStart,
		PageEnd:   b.pageEnd,
	}
	return chunk, next, true
}

// ChunkPages chunks paginated text, tagging each chunk with the inclusive
// page range it was drawn from. Blank pages contribute nothing and do not
// open a page range.
func ChunkPages(pages []Page) []model.TextChunk {
	var chunks []model.TextChunk
	idx := 0
	var buf pageBuffer

	for _, page := range pages {
		pageText := strings.TrimSpace(page.Text)
		if pageText == "" {
			continue
		}
		if buf.pageStart == 0 {
			buf.pageStart = page.Number
		}
		buf.pageEnd = page.Number
		if len(buf.text) > 0 {
			buf.text = append(buf.text, ' ')
		}
		buf.text = append(buf.text, []rune(pageText)...)

		for buf.full() {
			chunk, next, ok := buf.flush(idx)
			if ok {
				chunks = append(chunks, chunk)
				idx++
			}
			buf = next
		}
	}

	if content := strings.TrimSpace(string(buf.text)); content != "" {
		chunks = append(chunks, model.TextChunk{
			Index:     idx,
			Content:   content,
			PageStart: buf.pageStart,
			PageEnd:   buf.pageEnd,
		})
	}
	return chunks
}
