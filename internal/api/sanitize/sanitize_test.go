package sanitize

import "testing"

func TestText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  PROMO  ", "PROMO"},
		{"<script>alert(1)</script>PROMO", "PROMO"},
		{"<b>bold</b> name", "bold name"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Errorf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
