package sequence

// A doubly linked list.
//
// The compiler uses it as the operand/operator stack of each parenthesis depth, where the last element is the top of the stack.
type Sequence[T any] struct {
	Payload  *T
	Next     *Sequence[T]
	Previous *Sequence[T]
}

func New[T any](payload *T) *Sequence[T] {
	return &Sequence[T]{
		Payload:  payload,
		Next:     nil,
		Previous: nil,
	}
}

// Insert a new element after s and return it.
//
// If s is nil a new sequence is started.
func (s *Sequence[T]) InsertAfter(payload *T) *Sequence[T] {
	if s == nil {
		return New(payload)
	}
	element := &Sequence[T]{
		Payload:  payload,
		Previous: s,
		Next:     s.Next,
	}
	if s.Next != nil {
		s.Next.Previous = element
	}
	s.Next = element
	return element
}
