package client

import (
	"runtime"
	"strings"
)

// Frames with these prefixes belong to the client protocol or to its hooks and are not part of the live call stack.
var protocolFrames = []string{
	"gofi/client.(*Client).",
	"gofi/client.CurrentStack",
	"gofi/client.MatchStack",
	"gofi/instrumentation.",
}

// Returns the qualified function names of the calling goroutine's stack, outermost first.
func CurrentStack() []string {
	pcs := make([]uintptr, 64)
	for {
		n := runtime.Callers(1, pcs)
		if n < len(pcs) {
			pcs = pcs[:n]
			break
		}
		pcs = make([]uintptr, len(pcs)*2)
	}

	stack := []string{}
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if !isProtocolFrame(frame.Function) {
			stack = append(stack, frame.Function)
		}
		if !more {
			break
		}
	}
	for i, j := 0, len(stack)-1; i < j; i, j = i+1, j-1 {
		stack[i], stack[j] = stack[j], stack[i]
	}
	return stack
}

// Returns true if the signature appears in order in the live call stack of the calling goroutine
func MatchStack(signature []string) bool {
	return matchSignature(CurrentStack(), signature)
}

// Returns true if every element of signature matches a frame of stack, in the same order.
//
// stack and signature are both ordered outermost first.
// Frames between the matched ones are allowed since the runtime adds frames for closures and wrappers.
func matchSignature(stack, signature []string) bool {
	if len(signature) == 0 {
		return true
	}
	i := 0
	for _, frame := range stack {
		if frameMatches(frame, signature[i]) {
			i++
			if i == len(signature) {
				return true
			}
		}
	}
	return false
}

// A frame matches its fully qualified name, or a name qualified by the last elements of the import path
func frameMatches(frame, name string) bool {
	return frame == name || strings.HasSuffix(frame, "/"+name)
}

func isProtocolFrame(function string) bool {
	if strings.HasPrefix(function, "runtime.") {
		return true
	}
	for _, prefix := range protocolFrames {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}
