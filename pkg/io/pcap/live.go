//go:build pcap

package pcap

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// NewLiveReader creates a reader for live packet capture. It needs libpcap and
// is only built with the pcap build tag.
func NewLiveReader(iface string, snaplen int32, promisc bool, timeout time.Duration, opts ...Option) (*Reader, error) {
	handle, err := pcap.OpenLive(iface, snaplen, promisc, timeout)
	if err != nil {
		return nil, err
	}

	r := newReader(liveSource{handle}, handle.LinkType(), opts...)
	r.closer = closerFunc(func() error {
		handle.Close()
		return nil
	})
	return r, nil
}

// liveSource reports read timeouts as temporary so Stream can check for
// cancellation on a quiet interface.
type liveSource struct {
	handle *pcap.Handle
}

func (s liveSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ci, timeoutError{err}
	}
	return data, ci, err
}

type timeoutError struct{ error }

func (timeoutError) Temporary() bool { return true }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
