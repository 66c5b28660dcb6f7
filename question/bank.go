// Package question supplies the interview prompts the session walks
// through. A built-in behavioral set ships with the binary; users can
// swap in their own bank from a TOML file.
package question

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

type Question struct {
	Text  string `toml:"text"`
	Topic string `toml:"topic"`
}

var starter = []Question{
	{Text: "Tell me about yourself.", Topic: "intro"},
	{Text: "Walk me through a project you are proud of.", Topic: "experience"},
	{Text: "Describe a time you disagreed with a teammate. How did you resolve it?", Topic: "conflict"},
	{Text: "Tell me about a mistake you made and what you learned from it.", Topic: "failure"},
	{Text: "How do you prioritize when everything feels urgent?", Topic: "process"},
	{Text: "Describe a time you had to learn something quickly.", Topic: "growth"},
	{Text: "Tell me about a time you received difficult feedback.", Topic: "feedback"},
	{Text: "Why do you want this role?", Topic: "motivation"},
	{Text: "Describe a situation where you influenced a decision without authority.", Topic: "leadership"},
	{Text: "What would your previous manager say is your biggest strength?", Topic: "self-awareness"},
}

// Bank cycles through questions in order. Shuffle reorders once up
// front so a practice run never repeats until the bank wraps.
type Bank struct {
	mu        sync.Mutex
	questions []Question
	idx       int
}

func NewBank() *Bank {
	return &Bank{questions: append([]Question(nil), starter...)}
}

type bankFile struct {
	Questions []Question `toml:"questions"`
}

// LoadBank reads a user-supplied bank. A file with no usable questions
// is an error rather than a silent empty session.
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading question bank: %w", err)
	}
	var bf bankFile
	if err := toml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parsing question bank: %w", err)
	}
	var qs []Question
	for _, q := range bf.Questions {
		if q.Text != "" {
			qs = append(qs, q)
		}
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("question bank %s has no questions", path)
	}
	return &Bank{questions: qs}, nil
}

func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.questions)
}

// Current returns the question the session is on without advancing.
func (b *Bank) Current() Question {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.questions[b.idx]
}

// Next advances to the following question, wrapping at the end.
func (b *Bank) Next() Question {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idx = (b.idx + 1) % len(b.questions)
	return b.questions[b.idx]
}

func (b *Bank) Shuffle() {
	b.mu.Lock()
	defer b.mu.Unlock()
	rand.Shuffle(len(b.questions), func(i, j int) {
		b.questions[i], b.questions[j] = b.questions[j], b.questions[i]
	})
	b.idx = 0
}

// Position reports the 1-based index for the UI header.
func (b *Bank) Position() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.idx + 1, len(b.questions)
}
