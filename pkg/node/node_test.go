package node

import "testing"

func TestNormalization(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"TEST", "test"},
		{"http://www.example.com/abc", "example.com/abc"},
		{"http://www.example.com/abc#123", "example.com/abc"},
	}

	for _, c := range cases {
		if got := From(c.in).String(); got != c.want {
			t.Errorf("From(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestIntoHost(t *testing.T) {
	got := From("https://www.example.com?test").IntoHost().String()
	if got != "example.com" {
		t.Errorf("IntoHost() = %q, want %q", got, "example.com")
	}
}

func TestIdempotent(t *testing.T) {
	for _, s := range []string{
		"http://www.Example.com/Abc#123",
		"https://WWW.test.org/",
		"plain.host",
	} {
		first := From(s).String()
		second := From(first).String()
		if first != second {
			t.Errorf("From not idempotent for %q: %q != %q", s, first, second)
		}
	}
}

func TestEqualityAndID(t *testing.T) {
	a := From("http://www.example.com")
	b := From("https://www.EXAMPLE.com")

	if !a.Equal(b) {
		t.Fatalf("expected %q and %q to be equal", a, b)
	}
	if a.ID() != b.ID() {
		t.Fatalf("expected equal nodes to share a NodeID")
	}
}
