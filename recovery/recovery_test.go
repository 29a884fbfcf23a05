package recovery

import (
	"context"
	"errors"
	"testing"
)

func TestStrictStrategyFails(t *testing.T) {
	s := NewStrictStrategy()
	act := s.OnError(context.Background(), errors.New("bad token"), Location{Component: "scanner"})
	if act != ActionFail {
		t.Fatalf("expected ActionFail, got %v", act)
	}
}

func TestLenientStrategyRecordsAndFixes(t *testing.T) {
	s := NewLenientStrategy()
	err := errors.New("unterminated string")
	act := s.OnError(context.Background(), err, Location{Component: "scanner", ByteOffset: 42})
	if act != ActionFix {
		t.Fatalf("expected ActionFix, got %v", act)
	}
	if len(s.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(s.Errors))
	}
	if !errors.Is(s.Errors[0], err) {
		t.Fatalf("recorded error does not wrap original: %v", s.Errors[0])
	}
}
