package media

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "ASCII reserved characters",
			input:    "test:file*name?with<special>chars|here",
			expected: "test-filenamewithspecialcharshere",
		},
		{
			name:     "Path separators",
			input:    "path/to\\file",
			expected: "path-to-file",
		},
		{
			name:     "Trailing dots and spaces",
			input:    "filename...",
			expected: "filename",
		},
		{
			name:     "Multiple spaces",
			input:    "file   name   here",
			expected: "file name here",
		},
		{
			name:     "Control characters",
			input:    "file\x00name\x1fhere",
			expected: "filenamehere",
		},
		{
			name:     "Newlines and tabs",
			input:    "file\nname\there",
			expected: "file name here",
		},
		{
			name:     "URL in title",
			input:    "Check out https://example.com/path for more",
			expected: "Check out for more",
		},
		{
			name:     "Long filename truncation",
			input:    "这是一个非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常长的标题",
			expected: "这是一个非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常非常",
		},
		{
			name:     "Empty after sanitization",
			input:    "???***",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFilename(%q)\n  got:  %q\n  want: %q", tt.input, result, tt.expected)
			}
		})
	}
}
