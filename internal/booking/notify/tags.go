package notify

import (
	"encoding/json"
	"strings"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// TagFilter is one element of a push provider tag expression: either a key comparison
// or an OR operator joining two comparisons.
type TagFilter struct {
	Key      string
	Relation string
	Value    string
	Operator string
}

func (f TagFilter) MarshalJSON() ([]byte, error) {
	if f.Operator != "" {
		return json.Marshal(struct {
			Operator string `json:"operator"`
		}{f.Operator})
	}
	return json.Marshal(struct {
		Key      string `json:"key"`
		Relation string `json:"relation"`
		Value    string `json:"value"`
	}{f.Key, f.Relation, f.Value})
}

// TagExpression addresses devices by the email tag of their owner.
type TagExpression []TagFilter

// EmailTags builds `email = a OR email = b ...` for users. Addresses are lowercased and
// users without one are skipped.
func EmailTags(users []*domain.User) TagExpression {
	var expr TagExpression
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		if len(expr) > 0 {
			expr = append(expr, TagFilter{Operator: "OR"})
		}
		expr = append(expr, TagFilter{Key: "email", Relation: "=", Value: email})
	}
	return expr
}

// Targets counts the comparisons in the expression.
func (e TagExpression) Targets() int {
	n := 0
	for _, f := range e {
		if f.Operator == "" {
			n++
		}
	}
	return n
}
