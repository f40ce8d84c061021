package remote

import "testing"

func TestPathHelpers(t *testing.T) {
	cases := []struct {
		in     string
		norm   string
		parent string
		depth  int
	}{
		{"", "/", "/", 0},
		{"/", "/", "/", 0},
		{"Photos", "/Photos", "/", 1},
		{"/Photos/2024/", "/Photos/2024", "/Photos", 2},
		{"Photos\\2024\\img.jpg", "/Photos/2024/img.jpg", "/Photos/2024", 3},
		{"/a//b/../c", "/a/c", "/a", 2},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.norm {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.norm)
			}
			if got := Parent(tc.in); got != tc.parent {
				t.Errorf("Parent(%q) = %q, want %q", tc.in, got, tc.parent)
			}
			if got := Depth(tc.in); got != tc.depth {
				t.Errorf("Depth(%q) = %d, want %d", tc.in, got, tc.depth)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	if got := Join("/Photos/", "Trip", "a.jpg"); got != "/Photos/Trip/a.jpg" {
		t.Fatalf("got %q", got)
	}
	if got := Join("", "a.jpg"); got != "/a.jpg" {
		t.Fatalf("got %q", got)
	}
}
