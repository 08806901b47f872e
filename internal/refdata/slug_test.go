package refdata

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Keanu Reeves", "keanu-reeves"},
		{"Beyoncé", "beyonce"},
		{"  A.R. Rahman  ", "a-r-rahman"},
		{"Zoë Saldaña", "zoe-saldana"},
		{"50 Cent", "50-cent"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
