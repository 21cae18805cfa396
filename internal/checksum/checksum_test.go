package checksum

import "testing"

func TestSum(t *testing.T) {
	// echo -n "hello" | sha256sum
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := Sum([]byte("hello")); got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestFields_Boundaries(t *testing.T) {
	if Fields("ab", "c") == Fields("a", "bc") {
		t.Error("field boundaries must change the digest")
	}
	if Fields("a", "b") != Fields("a", "b") {
		t.Error("digest must be deterministic")
	}
	if Fields() == Fields("") {
		t.Error("an empty field is not the same as no field")
	}
}
