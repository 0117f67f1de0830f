package txt

import (
	"fmt"

	"github.com/eliben/go-sentencepiece"
)

// SentencePiece is a Tokenizer backed by a sentencepiece model file, the
// kind the speech models ship as their text tokenizer.
type SentencePiece struct {
	proc  *sentencepiece.Processor
	vocab int
}

func LoadSentencePiece(path string) (*SentencePiece, error) {
	proc, err := sentencepiece.NewProcessorFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &SentencePiece{
		proc:  proc,
		vocab: proc.ModelInfo().VocabularySize,
	}, nil
}

func (s *SentencePiece) VocabularySize() int {
	return s.vocab
}

func (s *SentencePiece) Decode(ids []int) (text string, err error) {
	for _, id := range ids {
		if id < 0 || id >= s.vocab {
			return "", fmt.Errorf("token %d outside vocabulary of %d", id, s.vocab)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode %v: %v", ids, r)
		}
	}()
	return s.proc.Decode(ids), nil
}
