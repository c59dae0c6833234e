package objectstore

import "testing"

func TestS3Store_PublicURL(t *testing.T) {
	s := &S3Store{cfg: Config{PublicBaseURL: "https://cdn.example.com/scans/"}}

	cases := []struct {
		key  string
		want string
	}{
		{"resolutions/2024/a.jpg", "https://cdn.example.com/scans/resolutions/2024/a.jpg"},
		{"/resolutions/2024/a.jpg", "https://cdn.example.com/scans/resolutions/2024/a.jpg"},
	}
	for _, tc := range cases {
		if got := s.PublicURL(tc.key); got != tc.want {
			t.Fatalf("PublicURL(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}
