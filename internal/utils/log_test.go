package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	prompt := "[Inputs]\nStudent:\n{\n  \"full_name\": \"Ana\",\n  \"department\": \"CS\"\n}"

	tests := map[string]struct {
		input string
		limit int
		want  string
	}{
		"disabled preview":        {input: prompt, limit: 0, want: ""},
		"negative limit":          {input: prompt, limit: -1, want: ""},
		"fits":                    {input: `[{"index":0}]`, limit: 40, want: `[{"index":0}]`},
		"prompt folded to a line": {input: prompt, limit: 200, want: `[Inputs] Student: { "full_name": "Ana", "department": "CS" }`},
		"cut after folding":       {input: prompt, limit: 16, want: "[Inputs] Student..."},
		"padded model output":     {input: "\n\n  ```json\n[]\n```  ", limit: 7, want: "```json..."},
		"multibyte names":         {input: "Łódź Kraków", limit: 4, want: "Łódź..."},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
