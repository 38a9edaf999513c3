package handler

import "testing"

func TestNamedURLs(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{NewsDetailURL("abc"), "/news/abc"},
		{NewsCommentsURL("abc"), "/news/abc#comments"},
		{CommentEditURL("c1"), "/comments/c1/edit"},
		{CommentDeleteURL("c1"), "/comments/c1/delete"},
		{NewsDetailURL("a/b"), "/news/a%2Fb"},
		{loginURLWithNext("/news/abc"), "/auth/login?next=%2Fnews%2Fabc"},
		{loginURLWithNext(""), "/auth/login"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/"},
		{"/news/abc", "/news/abc"},
		{"/news/abc?x=1#comments", "/news/abc?x=1#comments"},
		{"news/abc", "/"},
		{"//evil.example.com", "/"},
		{"/\\evil.example.com", "/"},
		{"https://evil.example.com/news", "/"},
		{"javascript:alert(1)", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			if got := safeNext(tt.next); got != tt.want {
				t.Errorf("safeNext(%q) = %q, want %q", tt.next, got, tt.want)
			}
		})
	}
}
