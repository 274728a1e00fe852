package sequence

import "gofi/event"

// Declare a stack trace event with a unique point for each of the names
func declare(names ...string) []event.Event {
	events := []event.Event{}
	for _, name := range names {
		events = append(events, event.NewStackTrace(name, "n1", event.Before, "p.Main.run", "p.Node."+name))
	}
	return events
}

var dependencyTest = []struct {
	expr     string
	expected map[string][]string
}{
	{"a", map[string][]string{"a": nil}},
	{"a*b", map[string][]string{"a": nil, "b": {"a"}}},
	{"a|b", map[string][]string{"a": nil, "b": nil}},
	{"(a|b)*c", map[string][]string{"a": nil, "b": nil, "c": {"a", "b"}}},
	{"a*b*(c|d)*e", map[string][]string{"a": nil, "b": {"a"}, "c": {"b"}, "d": {"b"}, "e": {"c", "d"}}},
	{"a*b|c", map[string][]string{"a": nil, "b": {"a"}, "c": {"a"}}},
	{"a|b*c", map[string][]string{"a": nil, "b": nil, "c": {"b"}}},
	{"a*(b*c)", map[string][]string{"a": nil, "b": {"a"}, "c": {"b"}}},
	{"(a*b)|c", map[string][]string{"a": nil, "b": {"a"}, "c": nil}},
	{"a*((b))", map[string][]string{"a": nil, "b": {"a"}}},
	{"((a|b)*c)*d", map[string][]string{"a": nil, "b": nil, "c": {"a", "b"}, "d": {"a", "b", "c"}}},
	{" a * ( b | c ) ", map[string][]string{"a": nil, "b": {"a"}, "c": {"a"}}},
	{"n1Started*e1*e2", map[string][]string{"n1Started": nil, "e1": {"n1Started"}, "e2": {"e1"}}},
}

var parseErrorTest = []struct {
	expr   string
	offset int
}{
	{"", 0},
	{"   ", 3},
	{"*a", 0},
	{"a**b", 2},
	{"a*", 2},
	{"(a", 0},
	{"a)", 1},
	{"a*()", 3},
	{"a b", 2},
	{"a(b)", 1},
	{"(a*)", 3},
	{"a+b", 1},
	{"a*(b|(c)", 2},
}
