package domain

import "fmt"

// Question represents a single entry in a DNS message's question section.
// UnicastResponse carries RFC 6762's repurposing of the top bit of the
// class field: a querier sets it to ask for a unicast rather than
// multicast reply.
type Question struct {
	Name            string
	Type            RRType
	Class           RRClass
	UnicastResponse bool
}

// NewQuestion constructs a Question and validates its fields.
func NewQuestion(name string, rrtype RRType, class RRClass, unicastResponse bool) (Question, error) {
	q := Question{
		Name:            name,
		Type:            rrtype,
		Class:           class,
		UnicastResponse: unicastResponse,
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Validate checks whether the Question fields are structurally valid.
func (q Question) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("question name must not be empty")
	}
	if !q.Type.IsValid() {
		return fmt.Errorf("unsupported RRType: %d", q.Type)
	}
	if !q.Class.IsValid() {
		return fmt.Errorf("unsupported RRClass: %d", q.Class)
	}
	return nil
}

// Matches reports whether a resource of the given name and type would
// answer this question, honoring the ANY wildcard.
func (q Question) Matches(name string, rrtype RRType) bool {
	if q.Name != name {
		return false
	}
	return q.Type == RRTypeANY || q.Type == rrtype
}
