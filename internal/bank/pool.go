package bank

import "cloudops-quiz-engine/internal/domain"

// Pool is a loaded, read-only question bank.
type Pool struct {
	source    string
	meta      domain.Bank
	questions []domain.Question
	index     map[string]int
}

// NewPool indexes questions. The slice is owned by the pool afterwards.
func NewPool(source string, questions []domain.Question) *Pool {
	index := make(map[string]int, len(questions))
	for i, q := range questions {
		if _, dup := index[q.ID]; !dup {
			index[q.ID] = i
		}
	}
	return &Pool{source: source, questions: questions, index: index}
}

func newPoolFromBank(source string, b domain.Bank) *Pool {
	p := NewPool(source, b.Questions)
	b.Questions = nil
	p.meta = b
	return p
}

// Source is where the pool was loaded from.
func (p *Pool) Source() string { return p.source }

// Meta returns the informational header of the bank document.
func (p *Pool) Meta() domain.Bank { return p.meta }

func (p *Pool) Len() int { return len(p.questions) }

// Questions returns a copy of the questions in bank order.
func (p *Pool) Questions() []domain.Question {
	out := make([]domain.Question, len(p.questions))
	copy(out, p.questions)
	return out
}

// Get looks a question up by ID.
func (p *Pool) Get(id string) (domain.Question, bool) {
	i, ok := p.index[id]
	if !ok {
		return domain.Question{}, false
	}
	return p.questions[i], true
}

// Index returns an ID -> question map for joins against answers.
func (p *Pool) Index() map[string]domain.Question {
	out := make(map[string]domain.Question, len(p.index))
	for id, i := range p.index {
		out[id] = p.questions[i]
	}
	return out
}

// Filter returns the questions for which keep reports true.
func (p *Pool) Filter(keep func(domain.Question) bool) []domain.Question {
	var out []domain.Question
	for _, q := range p.questions {
		if keep(q) {
			out = append(out, q)
		}
	}
	return out
}

func (p *Pool) ByDomain(d domain.Domain) []domain.Question {
	return p.Filter(func(q domain.Question) bool { return q.Domain == d })
}

func (p *Pool) ByDifficulty(d domain.Difficulty) []domain.Question {
	return p.Filter(func(q domain.Question) bool { return q.Difficulty == d })
}

func (p *Pool) ByTag(tag string) []domain.Question {
	return p.Filter(func(q domain.Question) bool { return q.HasTag(tag) })
}
