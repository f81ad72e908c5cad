package sanitize

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "plain text passes through",
			text: "Eels and elephants are not related",
			want: "Eels and elephants are not related",
		},
		{
			name: "empty string",
			text: "",
			want: "",
		},
		{
			name: "message field unwrapped",
			text: `{"message":"hi"}`,
			want: "hi",
		},
		{
			name: "decision object suppressed",
			text: `{"componentName":"X","props":{}}`,
			want: "",
		},
		{
			name: "partial decision object suppressed",
			text: `{"reasoning": "I should show a chart`,
			want: "",
		},
		{
			name: "unrelated object passes through",
			text: `{"temperature": 21, "unit": "C"}`,
			want: `{"temperature": 21, "unit": "C"}`,
		},
		{
			name: "message wins over indicators",
			text: `{"message":"done","componentName":"X"}`,
			want: "done",
		},
		{
			name: "non-string message field ignored",
			text: `{"message": 42, "componentState": {}}`,
			want: "",
		},
		{
			name: "json-looking prose passes through",
			text: "{braces} are fine in prose",
			want: "{braces} are fine in prose",
		},
		{
			name: "whitespace-padded object",
			text: "  {\"message\": \"trimmed\"}  ",
			want: "trimmed",
		},
		{
			name: "array passes through",
			text: `[1,2,3]`,
			want: `[1,2,3]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.text); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
