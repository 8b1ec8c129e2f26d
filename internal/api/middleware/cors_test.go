package middleware

import "testing"

func TestIsOriginAllowed(t *testing.T) {
	testCases := []struct {
		name   string
		origin string
		config CORSConfig
		want   bool
	}{
		{
			name:   "allow all origins",
			origin: "https://anything.example",
			config: CORSConfig{AllowAllOrigins: true},
			want:   true,
		},
		{
			name:   "listed origin",
			origin: "https://app.example.com",
			config: CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			want:   true,
		},
		{
			name:   "case-insensitive match",
			origin: "https://App.Example.Com",
			config: CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			want:   true,
		},
		{
			name:   "wildcard entry",
			origin: "https://anything.example",
			config: CORSConfig{AllowedOrigins: []string{"*"}},
			want:   true,
		},
		{
			name:   "unlisted origin",
			origin: "https://evil.example",
			config: CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
			want:   false,
		},
		{
			name:   "empty config",
			origin: "https://app.example.com",
			config: CORSConfig{},
			want:   false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsOriginAllowed(tc.origin, tc.config); got != tc.want {
				t.Errorf("IsOriginAllowed(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}
