package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_INT", "nope")
	if got := Int("ENVUTIL_TEST_INT", 7, nil); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	t.Setenv("ENVUTIL_TEST_INT", " 12 ")
	if got := Int("ENVUTIL_TEST_INT", 7, nil); got != 12 {
		t.Fatalf("Int: want=12 got=%d", got)
	}
}

func TestBool(t *testing.T) {
	cases := map[string]bool{"true": true, "ON": true, "0": false, "off": false, "maybe": true}
	for raw, want := range cases {
		t.Setenv("ENVUTIL_TEST_BOOL", raw)
		if got := Bool("ENVUTIL_TEST_BOOL", true); got != want {
			t.Fatalf("Bool(%q): want=%v got=%v", raw, want, got)
		}
	}
}

func TestStringAndMillis(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_STR", "   ")
	if got := String("ENVUTIL_TEST_STR", "def", nil); got != "def" {
		t.Fatalf("String blank: want=def got=%q", got)
	}
	t.Setenv("ENVUTIL_TEST_MS", "250")
	if got := Millis("ENVUTIL_TEST_MS", time.Second); got != 250*time.Millisecond {
		t.Fatalf("Millis: want=250ms got=%s", got)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_FLOAT", "0.25")
	if got := Float("ENVUTIL_TEST_FLOAT", 1); got != 0.25 {
		t.Fatalf("Float: want=0.25 got=%v", got)
	}
	t.Setenv("ENVUTIL_TEST_FLOAT", "x")
	if got := Float("ENVUTIL_TEST_FLOAT", 1); got != 1 {
		t.Fatalf("Float garbage: want=1 got=%v", got)
	}
}
