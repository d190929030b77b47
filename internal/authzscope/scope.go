// Package authzscope defines Scope, the authorization window an actor is
// currently operating in (GLOSSARY). It is deliberately dependency-free so
// every engine package (order, assignment, settlement, employee) can
// depend on it without creating import cycles among themselves.
package authzscope

type Scope string

const (
	Client  Scope = "client"
	Waiter  Scope = "waiter"
	Chef    Scope = "chef"
	Cashier Scope = "cashier"
	Admin   Scope = "admin"
	System  Scope = "system"
)

func (s Scope) In(allowed ...Scope) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
