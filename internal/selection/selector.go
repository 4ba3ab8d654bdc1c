package selection

import (
	"fmt"

	"github.com/mind-engage/examroom/internal/exam"
)

// Selector draws a module's question list and shuffles options.
type Selector struct {
	src Source
}

func New(src Source) *Selector {
	if src == nil {
		src = NewSource(0)
	}
	return &Selector{src: src}
}

// Draw takes up to QuestionCount random questions per config, in config order,
// then permutes the concatenation. Subjects with fewer questions than asked
// contribute what they have. Configs with a non-positive count are skipped.
func (s *Selector) Draw(configs []exam.SubjectConfig, pool []exam.Question) []exam.Question {
	var drawn []exam.Question
	for _, cfg := range configs {
		if cfg.QuestionCount <= 0 {
			continue
		}
		var candidates []exam.Question
		for _, q := range pool {
			if q.SubjectID == cfg.SubjectID {
				candidates = append(candidates, q)
			}
		}
		Permute(s.src, len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		drawn = append(drawn, candidates[:min(cfg.QuestionCount, len(candidates))]...)
	}
	Permute(s.src, len(drawn), func(i, j int) { drawn[i], drawn[j] = drawn[j], drawn[i] })
	return drawn
}

// Presented is a question as shown in one session.
type Presented struct {
	Question exam.Question `json:"question"` // options in display order, CorrectIndex remapped
	Order    []int         `json:"order"`    // Order[i] is the original index of displayed option i
}

// OriginalIndex maps a displayed option position back to the authored one.
func (p Presented) OriginalIndex(shown int) (int, bool) {
	if shown < 0 || shown >= len(p.Order) {
		return 0, false
	}
	return p.Order[shown], true
}

// Authored rebuilds the question with its authored option order and
// CorrectIndex.
func (p Presented) Authored() exam.Question {
	q := p.Question
	q.Options = make([]string, len(p.Question.Options))
	for shown, orig := range p.Order {
		q.Options[orig] = p.Question.Options[shown]
	}
	if orig, ok := p.OriginalIndex(p.Question.CorrectIndex); ok {
		q.CorrectIndex = orig
	}
	return q
}

// Identity presents q with its authored option order.
func Identity(q exam.Question) Presented {
	order := make([]int, len(q.Options))
	for i := range order {
		order[i] = i
	}
	q.Options = append([]string(nil), q.Options...)
	return Presented{Question: q, Order: order}
}

// Shuffle permutes q's options and moves CorrectIndex to where the originally
// correct option landed. q itself is not modified.
func (s *Selector) Shuffle(q exam.Question) Presented {
	p := Identity(q)
	opts := p.Question.Options
	Permute(s.src, len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
		p.Order[i], p.Order[j] = p.Order[j], p.Order[i]
	})
	for i, orig := range p.Order {
		if orig == q.CorrectIndex {
			p.Question.CorrectIndex = i
			break
		}
	}
	return p
}

// Prepare draws the session's questions for m and shuffles their options when
// the module asks for it.
func (s *Selector) Prepare(m exam.Module, pool []exam.Question) ([]Presented, error) {
	drawn := s.Draw(m.SubjectConfigs, pool)
	if len(drawn) == 0 {
		return nil, fmt.Errorf("module %s: %w", m.ID, exam.ErrEmptyQuestionPool)
	}
	out := make([]Presented, len(drawn))
	for i, q := range drawn {
		if m.Settings.Randomize {
			out[i] = s.Shuffle(q)
		} else {
			out[i] = Identity(q)
		}
	}
	return out, nil
}
