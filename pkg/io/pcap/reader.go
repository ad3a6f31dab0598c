// Package pcap turns packet captures into a univariate stream, one sample per packet.
package pcap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/hed1ad/streamguard/pkg/detectors"
	sgio "github.com/hed1ad/streamguard/pkg/io"
)

var _ sgio.Reader = (*Reader)(nil)

// Signal selects which per-packet measurement becomes the stream.
type Signal int

const (
	// PacketSize is the captured length of the packet in bytes.
	PacketSize Signal = iota
	// InterArrival is the time since the previous packet in seconds (0 for the first).
	InterArrival
	// PayloadSize is the application-layer payload length in bytes.
	PayloadSize
)

var signalNames = map[Signal]string{
	PacketSize:   "packet_size",
	InterArrival: "inter_arrival_time",
	PayloadSize:  "payload_size",
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Signal(%d)", int(s))
}

// ParseSignal resolves a signal by name.
func ParseSignal(name string) (Signal, error) {
	for s, n := range signalNames {
		if strings.EqualFold(name, n) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown signal %q", name)
}

// Reader reads packets from a capture and extracts one signal per packet.
type Reader struct {
	source    gopacket.PacketDataSource
	linkType  layers.LinkType
	closer    io.Closer
	extractor *Extractor

	err error
}

// Option configures a Reader.
type Option func(*Reader)

// WithSignal selects the extracted signal.
func WithSignal(s Signal) Option {
	return func(r *Reader) {
		r.extractor.signal = s
	}
}

// NewFileReader creates a reader for PCAP files.
func NewFileReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := NewStreamReader(file, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewStreamReader creates a reader over PCAP data. The caller keeps ownership of src.
func NewStreamReader(src io.Reader, opts ...Option) (*Reader, error) {
	pr, err := pcapgo.NewReader(src)
	if err != nil {
		return nil, err
	}
	return newReader(pr, pr.LinkType(), opts...), nil
}

func newReader(source gopacket.PacketDataSource, linkType layers.LinkType, opts ...Option) *Reader {
	r := &Reader{
		source:    source,
		linkType:  linkType,
		extractor: NewExtractor(PacketSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Signal returns the extracted signal.
func (r *Reader) Signal() Signal {
	return r.extractor.signal
}

// Read returns the signal of every packet.
func (r *Reader) Read() ([]float64, error) {
	if r.source == nil {
		return nil, errors.New("reader not initialized")
	}

	var data []float64
	packetSource := gopacket.NewPacketSource(r.source, r.linkType)

	for {
		packet, err := packetSource.NextPacket()
		if err == io.EOF {
			break
		}
		if isTemporary(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("packet %d: %w", len(data), err)
		}
		data = append(data, r.extractor.Extract(packet))
	}

	if len(data) == 0 {
		return nil, detectors.ErrEmptyInput
	}
	return data, nil
}

// Stream returns a channel of samples for real-time processing. The channel
// is closed at end of capture, on cancellation, or on a read error; Err
// reports which once the channel is drained.
func (r *Reader) Stream(ctx context.Context) (<-chan float64, error) {
	if r.source == nil {
		return nil, errors.New("reader not initialized")
	}

	out := make(chan float64, 1000)
	packetSource := gopacket.NewPacketSource(r.source, r.linkType)

	go func() {
		defer close(out)
		n := 0
		for {
			if err := ctx.Err(); err != nil {
				r.err = err
				return
			}

			packet, err := packetSource.NextPacket()
			if err == io.EOF {
				return
			}
			if isTemporary(err) {
				continue
			}
			if err != nil {
				r.err = fmt.Errorf("packet %d: %w", n, err)
				return
			}
			n++

			select {
			case out <- r.extractor.Extract(packet):
			case <-ctx.Done():
				r.err = ctx.Err()
				return
			}
		}
	}()

	return out, nil
}

// Err returns the error that ended Stream, or nil at the end of the capture.
// It is only meaningful after the stream channel has been closed.
func (r *Reader) Err() error {
	return r.err
}

// isTemporary reports errors worth retrying, such as a live capture's read timeout.
func isTemporary(err error) bool {
	var temp interface{ Temporary() bool }
	return errors.As(err, &temp) && temp.Temporary()
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Extractor converts packets into samples of one signal.
type Extractor struct {
	signal        Signal
	lastTimestamp time.Time
}

// NewExtractor creates a new packet extractor.
func NewExtractor(s Signal) *Extractor {
	return &Extractor{signal: s}
}

// Extract returns the configured signal for a packet.
func (e *Extractor) Extract(packet gopacket.Packet) float64 {
	switch e.signal {
	case InterArrival:
		var gap float64
		metadata := packet.Metadata()
		if metadata != nil && !metadata.Timestamp.IsZero() {
			if !e.lastTimestamp.IsZero() {
				gap = metadata.Timestamp.Sub(e.lastTimestamp).Seconds()
			}
			e.lastTimestamp = metadata.Timestamp
		}
		return gap
	case PayloadSize:
		if appLayer := packet.ApplicationLayer(); appLayer != nil {
			return float64(len(appLayer.Payload()))
		}
		return 0
	default:
		return float64(len(packet.Data()))
	}
}
