package splitter

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ahagan/strata/internal/models"
)

// SizeUnit selects how chunk sizes are measured.
const (
	UnitChars  = "chars"
	UnitTokens = "tokens"
)

type SplitterConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	MinChunkLength     int
	SizeUnit           string
	Encoding           string
	PreserveLineBreaks bool
}

// Splitter cleans document content and cuts it into overlapping chunks
// sized for the embedding model.
type Splitter struct {
	config  SplitterConfig
	encoder *tiktoken.Tiktoken
}

func NewWithConfig(config SplitterConfig) (*Splitter, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}
	if config.SizeUnit == "" {
		config.SizeUnit = UnitChars
	}
	if config.Encoding == "" {
		config.Encoding = "cl100k_base"
	}

	s := &Splitter{config: config}

	if config.SizeUnit == UnitTokens {
		encoder, err := tiktoken.GetEncoding(config.Encoding)
		if err != nil {
			return nil, fmt.Errorf("failed to load encoding %s: %w", config.Encoding, err)
		}
		s.encoder = encoder
	} else if config.SizeUnit != UnitChars {
		return nil, fmt.Errorf("unknown size unit: %s", config.SizeUnit)
	}

	return s, nil
}

func (s *Splitter) Split(docs []models.Document) ([]models.ProcessedDocument, error) {
	var processed []models.ProcessedDocument

	for _, doc := range docs {
		cleanContent := s.cleanText(doc.Content)
		chunks := s.splitIntoChunks(cleanContent)

		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}

	return processed, nil
}

func (s *Splitter) cleanText(text string) string {
	if s.config.PreserveLineBreaks {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = strings.Join(strings.Fields(line), " ")
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}

	// Replace runs of whitespace with single spaces
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// size measures text in the configured unit.
func (s *Splitter) size(text string) int {
	if s.encoder != nil {
		return len(s.encoder.Encode(text, nil, nil))
	}
	return len(text)
}

func (s *Splitter) splitIntoChunks(text string) []string {
	var chunks []string

	sentences := s.splitIntoSentences(text)

	currentChunk := strings.Builder{}

	for _, sentence := range sentences {
		// If adding this sentence would exceed chunk size
		if s.size(currentChunk.String())+s.size(sentence) > s.config.ChunkSize {
			if currentChunk.Len() >= s.config.MinChunkLength {
				chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
			}

			// Start new chunk with character overlap from the previous one
			if s.config.ChunkOverlap > 0 && currentChunk.Len() > s.config.ChunkOverlap {
				prev := currentChunk.String()
				lastPart := prev[len(prev)-s.config.ChunkOverlap:]
				currentChunk.Reset()
				currentChunk.WriteString(lastPart)
			} else {
				currentChunk.Reset()
			}
		}

		currentChunk.WriteString(sentence)
		currentChunk.WriteString(" ")
	}

	if currentChunk.Len() >= s.config.MinChunkLength {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

func (s *Splitter) splitIntoSentences(text string) []string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}
	var sentences []string

	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		for _, ender := range sentenceEnders {
			if strings.HasSuffix(current.String(), ender) {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
				break
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}

	return sentences
}
