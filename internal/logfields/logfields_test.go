package logfields

import (
	"errors"
	"testing"
)

func TestErrorAttr(t *testing.T) {
	attr := Error(errors.New("boom"))
	if attr.Key != KeyError {
		t.Fatalf("expected key %s, got %s", KeyError, attr.Key)
	}
	if attr.Value.String() != "boom" {
		t.Fatalf("expected value boom, got %s", attr.Value.String())
	}
}

func TestErrorAttrNil(t *testing.T) {
	attr := Error(nil)
	if attr.Value.String() != "" {
		t.Fatalf("expected empty value for nil error, got %s", attr.Value.String())
	}
}

func TestFieldKeys(t *testing.T) {
	cases := []struct{ got, want string }{
		{RunID("r").Key, KeyRunID},
		{Trigger("t").Key, KeyTrigger},
		{Step("s").Key, KeyStep},
		{Outcome("o").Key, KeyOutcome},
		{Branch("b").Key, KeyBranch},
		{Commit("c").Key, KeyCommit},
		{Path("p").Key, KeyPath},
		{Command("x").Key, KeyCommand},
		{DurationMS(1).Key, KeyDurationMS},
		{State("idle").Key, KeyState},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("expected key %s, got %s", c.want, c.got)
		}
	}
}
