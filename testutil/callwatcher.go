package testutil

import (
	"runtime"
	"strings"
	"sync"
	"testing"
)

// CallWatcher records calls made against a mock, keyed by the short name of the
// calling method (e.g. "Commit" for "(*MockTransaction).Commit").
type CallWatcher struct {
	mu            sync.Mutex
	functionCalls map[string][][]interface{}
}

func NewCallWatcher() *CallWatcher {
	return &CallWatcher{functionCalls: make(map[string][][]interface{})}
}

func (w *CallWatcher) GetCall(funcName string) [][]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.functionCalls[funcName]
}

func (w *CallWatcher) GetCallCount(funcName string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.functionCalls[funcName])
}

func (w *CallWatcher) AddCall(args ...interface{}) {
	pc := make([]uintptr, 15)
	n := runtime.Callers(2, pc)
	frames := runtime.CallersFrames(pc[:n])
	frame, _ := frames.Next()
	funcName := frame.Function
	if i := strings.LastIndex(funcName, "."); i >= 0 {
		funcName = funcName[i+1:]
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.functionCalls[funcName] = append(w.functionCalls[funcName], args)
}

func (w *CallWatcher) VerifyCount(funcName string, want int, t *testing.T) {
	t.Helper()
	if got := w.GetCallCount(funcName); got != want {
		t.Errorf("%s call count got=%d want=%d", funcName, got, want)
	}
}
