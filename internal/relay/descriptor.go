package relay

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// StreamName uniquely identifies a published stream in the directory service.
type StreamName string

// Endpoint is a transport/host/port triple at which a byte stream can be
// reached, rendered on the wire as "transport://host:port".
type Endpoint struct {
	Transport string
	Host      string
	Port      int
}

// String renders the endpoint in the transport://host:port form used in the
// published descriptor and the transcoder invocation.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s:%d", e.Transport, e.Host, e.Port)
}

// Addr renders the endpoint as a host:port dial/listen address.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Descriptor is the published record identifying one stream: its name, the
// endpoint downstream clients connect to, and presentation metadata.
// It is built once at startup and never mutated; the same value is passed to
// the directory service on register and again on deregister.
type Descriptor struct {
	Name      StreamName `json:"name"`
	Endpoint  string     `json:"endpoint"`
	VideoSize string     `json:"video_size"`
	BitRate   string     `json:"bit_rate"`
	Keywords  []string   `json:"keywords"`
}

// ParseKeywords splits a comma-separated keyword list into its elements,
// preserving order and duplicates. An empty input yields no keywords rather
// than a single empty keyword.
func ParseKeywords(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
