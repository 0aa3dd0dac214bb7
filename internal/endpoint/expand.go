// Package endpoint parses address/port patterns with {a-b} range syntax
// into a deterministic, bounded set of multicast endpoints.
package endpoint

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/nettools/pagemon/internal/perr"
)

// MaxEndpoints bounds a single pattern's expansion (spec: RangeTooLarge
// beyond this).
const MaxEndpoints = 65536

// Endpoint identifies one (multicast group, port) pair being monitored.
// Immutable once constructed; comparable by value.
type Endpoint struct {
	Addr net.IP
	Port uint16
}

// String renders the endpoint as "A.B.C.D:P".
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Addr.String(), e.Port)
}

// FileStem renders the endpoint for use in a recording filename, per the
// "page_{N:04}_{addr_with_dots_to_underscores}_{port}.wav" pattern.
func (e Endpoint) FileStem() string {
	return strings.ReplaceAll(e.Addr.String(), ".", "_") + fmt.Sprintf("_%d", e.Port)
}

type octetRange struct {
	start, end int
}

func (r octetRange) values() []int {
	out := make([]int, 0, r.end-r.start+1)
	for v := r.start; v <= r.end; v++ {
		out = append(out, v)
	}
	return out
}

// Expand parses pattern per the grammar:
//
//	pattern := host (':' port)?
//	host    := octet '.' octet '.' octet '.' octet
//	octet   := DIGITS | '{' DIGITS '-' DIGITS '}'
//	port    := DIGITS | '{' DIGITS '-' DIGITS '}'
//
// and enumerates it in lexicographic order over (octet1, octet2, octet3,
// octet4, port). defaultPort is used when the pattern omits ":port".
// requireMulticast rejects non-224.0.0.0/4 results (monitor mode); the
// transmit path calls Expand with requireMulticast=false and expects
// exactly one endpoint.
func Expand(pattern string, defaultPort uint16, requireMulticast bool) ([]Endpoint, error) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return nil, perr.New(perr.KindInvalidPattern, "", "empty pattern", nil)
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return nil, perr.New(perr.KindInvalidPattern, "", "embedded whitespace in pattern", nil)
	}

	hostPart := trimmed
	portPart := ""
	if idx := strings.LastIndex(trimmed, ":"); idx >= 0 {
		hostPart = trimmed[:idx]
		portPart = trimmed[idx+1:]
	}

	octets := strings.Split(hostPart, ".")
	if len(octets) != 4 {
		return nil, perr.New(perr.KindInvalidPattern, "", fmt.Sprintf("expected 4 octets, got %d", len(octets)), nil)
	}

	octetRanges := make([]octetRange, 4)
	for i, tok := range octets {
		r, err := parseRange(tok, 0, 255)
		if err != nil {
			return nil, perr.New(perr.KindInvalidPattern, "", fmt.Sprintf("octet %d: %v", i+1, err), nil)
		}
		octetRanges[i] = r
	}

	portRange := octetRange{start: int(defaultPort), end: int(defaultPort)}
	if portPart != "" {
		r, err := parseRange(portPart, 0, 65535)
		if err != nil {
			return nil, perr.New(perr.KindInvalidPattern, "", fmt.Sprintf("port: %v", err), nil)
		}
		portRange = r
	}

	total := 1
	for _, r := range octetRanges {
		total *= r.end - r.start + 1
	}
	total *= portRange.end - portRange.start + 1
	if total > MaxEndpoints {
		return nil, perr.New(perr.KindRangeTooLarge, "", fmt.Sprintf("pattern expands to %d endpoints (max %d)", total, MaxEndpoints), nil)
	}

	out := make([]Endpoint, 0, total)
	for _, o1 := range octetRanges[0].values() {
		for _, o2 := range octetRanges[1].values() {
			for _, o3 := range octetRanges[2].values() {
				for _, o4 := range octetRanges[3].values() {
					ip := net.IPv4(byte(o1), byte(o2), byte(o3), byte(o4))
					if requireMulticast && !ip.IsMulticast() {
						return nil, perr.New(perr.KindNotMulticast, "", fmt.Sprintf("%s is not a multicast address", ip), nil)
					}
					for _, p := range portRange.values() {
						out = append(out, Endpoint{Addr: ip, Port: uint16(p)})
					}
				}
			}
		}
	}
	return out, nil
}

// parseRange parses either a plain integer or a "{start-end}" range,
// validating start<=end and both within [lo, hi].
func parseRange(tok string, lo, hi int) (octetRange, error) {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "{") {
		if !strings.HasSuffix(tok, "}") {
			return octetRange{}, fmt.Errorf("unterminated range %q", tok)
		}
		body := tok[1 : len(tok)-1]
		parts := strings.SplitN(body, "-", 2)
		if len(parts) != 2 {
			return octetRange{}, fmt.Errorf("malformed range %q", tok)
		}
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return octetRange{}, fmt.Errorf("range start %q: %w", parts[0], err)
		}
		end, err := strconv.Atoi(parts[1])
		if err != nil {
			return octetRange{}, fmt.Errorf("range end %q: %w", parts[1], err)
		}
		if start > end {
			return octetRange{}, fmt.Errorf("range start %d > end %d", start, end)
		}
		if start < lo || end > hi {
			return octetRange{}, fmt.Errorf("range %d-%d out of bounds [%d,%d]", start, end, lo, hi)
		}
		return octetRange{start: start, end: end}, nil
	}

	v, err := strconv.Atoi(tok)
	if err != nil {
		return octetRange{}, fmt.Errorf("invalid integer %q: %w", tok, err)
	}
	if v < lo || v > hi {
		return octetRange{}, fmt.Errorf("value %d out of bounds [%d,%d]", v, lo, hi)
	}
	return octetRange{start: v, end: v}, nil
}

// Render turns a single Endpoint back into a pattern string, used to
// check Expand's idempotency: Expand(Render(e)) == [e].
func Render(e Endpoint) string {
	return fmt.Sprintf("%s:%d", e.Addr.String(), e.Port)
}
