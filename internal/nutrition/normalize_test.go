package nutrition

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Grilled_Chicken_(Skinless)", "Grilled Chicken"},
		{"plain_rice", "plain rice"},
		{"Soup (large)", "Soup"},
		// No case folding
		{"Pizza", "Pizza"},
		// Only the first "(" matters
		{"a (b (c))", "a"},
		{"(starts with paren)", ""},
		{"_padded_", "padded"},
		{"  spaced  ", "spaced"},
		// Closing parens alone are kept
		{"odd)name", "odd)name"},
		{"", ""},
	}

	for _, tc := range tests {
		if got := Normalize(tc.input); got != tc.want {
			t.Errorf("Normalize(%q) = %q; want %q", tc.input, got, tc.want)
		}
	}
}

func TestNormalize_NotInjective(t *testing.T) {
	a := Normalize("fried_rice_(chinese)")
	b := Normalize("fried rice (thai)")
	if a != b {
		t.Errorf("expected both labels to normalize to the same name, got %q and %q", a, b)
	}
}
