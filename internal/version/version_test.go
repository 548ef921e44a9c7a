package version

import (
	"strings"
	"testing"
)

func TestGettersMatchInfo(t *testing.T) {
	v, c, d := Info()
	if v == "" || c == "" || d == "" {
		t.Fatalf("build info must not be empty: %q %q %q", v, c, d)
	}
	if GetVersion() != v || GetCommit() != c || GetDate() != d {
		t.Fatalf("getters disagree with Info: %s %s %s", GetVersion(), GetCommit(), GetDate())
	}
}

func TestString(t *testing.T) {
	s := String()
	for _, part := range []string{"version=", "commit=", "date="} {
		if !strings.Contains(s, part) {
			t.Errorf("String should contain %q, got %s", part, s)
		}
	}
}

func TestBanner(t *testing.T) {
	if b := Banner("order-service"); !strings.HasPrefix(b, "order-service version=") {
		t.Fatalf("unexpected banner: %s", b)
	}
}
