package httpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLGuard_Validate(t *testing.T) {
	var g urlGuard

	cases := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"plain https", "https://example.com/widgets", false},
		{"plain http", "http://example.com", false},
		{"file scheme blocked", "file:///etc/passwd", true},
		{"loopback hostname blocked", "http://localhost/admin", true},
		{"loopback ip blocked", "http://127.0.0.1:8080/", true},
		{"path traversal blocked", "https://example.com/../../etc/passwd", true},
		{"etc path blocked", "https://example.com/etc/shadow", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := g.validate(tc.url)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
