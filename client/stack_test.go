package client

import (
	"testing"
)

var matchSignatureTest = []struct {
	stack     []string
	signature []string
	expected  bool
}{
	{[]string{"main.main", "p.A.run", "p.B.handle"}, []string{}, true},
	{[]string{"main.main", "p.A.run", "p.B.handle"}, []string{"p.A.run", "p.B.handle"}, true},
	{[]string{"main.main", "p.A.run", "p.B.handle"}, []string{"p.B.handle", "p.A.run"}, false},
	{[]string{"main.main", "p.A.run", "p.A.run.func1", "p.B.handle"}, []string{"p.A.run", "p.B.handle"}, true},
	{[]string{"main.main", "p.A.run"}, []string{"p.A.run", "p.B.handle"}, false},
	{[]string{"example.com/x/p.(*Server).Handle"}, []string{"p.(*Server).Handle"}, true},
	{[]string{"example.com/x/p.(*Server).Handle"}, []string{"x/p.(*Server).Handle"}, true},
	{[]string{"example.com/x/op.(*Server).Handle"}, []string{"p.(*Server).Handle"}, false},
	{[]string{}, []string{"p.A.run"}, false},
}

func TestMatchSignature(t *testing.T) {
	for i, test := range matchSignatureTest {
		if got := matchSignature(test.stack, test.signature); got != test.expected {
			t.Errorf("Test %v: matchSignature(%v, %v) = %v. Expected %v", i, test.stack, test.signature, got, test.expected)
		}
	}
}

//go:noinline
func outerCall(signature []string) bool {
	return innerCall(signature)
}

//go:noinline
func innerCall(signature []string) bool {
	return MatchStack(signature)
}

func TestMatchStackLive(t *testing.T) {
	if !outerCall([]string{"client.outerCall", "client.innerCall"}) {
		t.Errorf("Expected signature outerCall -> innerCall to match")
	}
	if !outerCall([]string{"gofi/client.TestMatchStackLive", "client.innerCall"}) {
		t.Errorf("Expected signature including the test function to match")
	}
	if outerCall([]string{"client.innerCall", "client.outerCall"}) {
		t.Errorf("Expected reversed signature not to match")
	}
	if innerCall([]string{"client.outerCall", "client.innerCall"}) {
		t.Errorf("Expected signature not to match when outerCall is not on the stack")
	}
}

func TestCurrentStackSkipsProtocolFrames(t *testing.T) {
	stack := CurrentStack()
	if len(stack) == 0 {
		t.Fatalf("Expected a non empty stack")
	}
	if last := stack[len(stack)-1]; last != "gofi/client.TestCurrentStackSkipsProtocolFrames" {
		t.Errorf("Expected innermost frame to be the test function. Got %v", last)
	}
	for _, frame := range stack {
		if isProtocolFrame(frame) {
			t.Errorf("Unexpected protocol frame in stack: %v", frame)
		}
	}
}
