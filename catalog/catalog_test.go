package catalog

import "testing"

func TestNormalizeQuery(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Nike Air Max Review", "nike air max review"},
		{"  NIKE   AIR  MAX ", "nike air max"},
		{"nike\tair\nmax", "nike air max"},
		{"already normal", "already normal"},
		{"   ", ""},
		{"", ""},
	}

	for _, c := range cases {
		if got := NormalizeQuery(c.in); got != c.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
