//go:build pcap

package main

import (
	"fmt"
	"time"

	sgio "github.com/hed1ad/streamguard/pkg/io"
	"github.com/hed1ad/streamguard/pkg/io/pcap"
)

// openLive starts a promiscuous capture on iface.
func openLive(iface string, signal pcap.Signal) (sgio.Reader, error) {
	r, err := pcap.NewLiveReader(iface, 65535, true, 500*time.Millisecond, pcap.WithSignal(signal))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", iface, err)
	}
	return r, nil
}
