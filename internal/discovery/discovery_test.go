package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
)

func TestEntryURL(t *testing.T) {
	cases := []struct {
		name  string
		entry *mdns.ServiceEntry
		want  string
		ok    bool
	}{
		{"nil", nil, "", false},
		{"no address", &mdns.ServiceEntry{Port: 8080}, "", false},
		{"no port", &mdns.ServiceEntry{AddrV4: net.IPv4(10, 0, 0, 2)}, "", false},
		{"default path", &mdns.ServiceEntry{AddrV4: net.IPv4(10, 0, 0, 2), Port: 8080}, "ws://10.0.0.2:8080/ws", true},
		{
			"advertised path",
			&mdns.ServiceEntry{AddrV4: net.IPv4(192, 168, 1, 5), Port: 9000, InfoFields: []string{"whiteboard relay", "path=relay"}},
			"ws://192.168.1.5:9000/relay", true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := EntryURL(tc.entry)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
