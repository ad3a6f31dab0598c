package pcap

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/streamguard/pkg/detectors"
)

// Ethernet + IPv4 + UDP headers; gopacket pads frames to 60 bytes.
const (
	headerLen = 14 + 20 + 8
	minFrame  = 60
)

func TestRead(t *testing.T) {
	payloads := []int{10, 20, 500, 0}
	gaps := []time.Duration{0, 10 * time.Millisecond, 250 * time.Millisecond, time.Second}

	tests := []struct {
		name   string
		signal Signal
		want   []float64
	}{
		{
			name:   "packet size",
			signal: PacketSize,
			want:   []float64{minFrame, headerLen + 20, headerLen + 500, minFrame},
		},
		{
			name:   "payload size",
			signal: PayloadSize,
			want:   []float64{10, 20, 500, 0},
		},
		{
			name:   "inter-arrival time",
			signal: InterArrival,
			want:   []float64{0, 0.01, 0.25, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := writeCapture(t, payloads, gaps)

			r, err := NewStreamReader(bytes.NewReader(data), WithSignal(tt.signal))
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, tt.signal, r.Signal())

			got, err := r.Read()
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9, "sample %d", i)
			}
		})
	}
}

func TestReadEmptyCapture(t *testing.T) {
	data := writeCapture(t, nil, nil)

	r, err := NewStreamReader(bytes.NewReader(data))
	require.NoError(t, err)

	_, err = r.Read()
	assert.ErrorIs(t, err, detectors.ErrEmptyInput)
}

func TestNewStreamReaderInvalid(t *testing.T) {
	_, err := NewStreamReader(bytes.NewReader([]byte("not a capture file at all")))
	assert.Error(t, err)
}

func TestNewFileReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pcap")
	require.NoError(t, os.WriteFile(path, writeCapture(t, []int{1, 2}, []time.Duration{0, time.Millisecond}), 0o644))

	r, err := NewFileReader(path, WithSignal(PayloadSize))
	require.NoError(t, err)

	got, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)
	assert.NoError(t, r.Close())
}

func TestStream(t *testing.T) {
	data := writeCapture(t, []int{5, 6, 7}, []time.Duration{0, time.Millisecond, time.Millisecond})
	r, err := NewStreamReader(bytes.NewReader(data), WithSignal(PayloadSize))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Stream(ctx)
	require.NoError(t, err)

	var got []float64
	for v := range ch {
		got = append(got, v)
	}
	assert.Equal(t, []float64{5, 6, 7}, got)
	assert.NoError(t, r.Err())
}

func TestTruncatedCapture(t *testing.T) {
	data := writeCapture(t, []int{5, 6, 7}, []time.Duration{0, time.Millisecond, time.Millisecond})
	truncated := data[:len(data)-5]

	t.Run("read", func(t *testing.T) {
		r, err := NewStreamReader(bytes.NewReader(truncated), WithSignal(PayloadSize))
		require.NoError(t, err)

		_, err = r.Read()
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("stream", func(t *testing.T) {
		r, err := NewStreamReader(bytes.NewReader(truncated), WithSignal(PayloadSize))
		require.NoError(t, err)

		ch, err := r.Stream(context.Background())
		require.NoError(t, err)

		var got []float64
		for v := range ch {
			got = append(got, v)
		}
		assert.Equal(t, []float64{5, 6}, got)
		assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
	})
}

func TestParseSignal(t *testing.T) {
	for _, s := range []Signal{PacketSize, InterArrival, PayloadSize} {
		got, err := ParseSignal(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseSignal("ttl")
	assert.Error(t, err)
	assert.Equal(t, "Signal(9)", Signal(9).String())
}

// writeCapture serializes one UDP packet per payload into an in-memory pcap file.
func writeCapture(t *testing.T, payloads []int, gaps []time.Duration) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, size := range payloads {
		ts = ts.Add(gaps[i])

		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
			DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    net.IPv4(10, 0, 0, 1),
			DstIP:    net.IPv4(10, 0, 0, 2),
		}
		udp := &layers.UDP{SrcPort: 40000, DstPort: 40001}

		sb := gopacket.NewSerializeBuffer()
		err := gopacket.SerializeLayers(sb, gopacket.SerializeOptions{FixLengths: true},
			eth, ip, udp, gopacket.Payload(bytes.Repeat([]byte{0xab}, size)))
		require.NoError(t, err)

		packet := sb.Bytes()
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     ts,
			CaptureLength: len(packet),
			Length:        len(packet),
		}, packet))
	}

	return buf.Bytes()
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "read timeout" }
func (timeoutErr) Temporary() bool { return true }

// quietSource times out a few times before each packet, like an idle interface.
type quietSource struct {
	packets  [][]byte
	timeouts int
	pending  int
}

func (s *quietSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if s.pending > 0 {
		s.pending--
		return nil, gopacket.CaptureInfo{}, timeoutErr{}
	}
	if len(s.packets) == 0 {
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
	p := s.packets[0]
	s.packets = s.packets[1:]
	s.pending = s.timeouts
	return p, gopacket.CaptureInfo{CaptureLength: len(p), Length: len(p)}, nil
}

func TestTemporaryErrorsAreRetried(t *testing.T) {
	packets := func() [][]byte {
		return [][]byte{make([]byte, 64), make([]byte, 80)}
	}

	t.Run("read", func(t *testing.T) {
		r := newReader(&quietSource{packets: packets(), timeouts: 2, pending: 2}, layers.LinkTypeEthernet)
		got, err := r.Read()
		require.NoError(t, err)
		assert.Equal(t, []float64{64, 80}, got)
	})

	t.Run("stream", func(t *testing.T) {
		r := newReader(&quietSource{packets: packets(), timeouts: 3, pending: 1}, layers.LinkTypeEthernet)
		ch, err := r.Stream(context.Background())
		require.NoError(t, err)

		var got []float64
		for v := range ch {
			got = append(got, v)
		}
		assert.Equal(t, []float64{64, 80}, got)
		assert.NoError(t, r.Err())
	})
}
