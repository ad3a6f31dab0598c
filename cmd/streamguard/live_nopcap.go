//go:build !pcap

package main

import (
	"errors"

	sgio "github.com/hed1ad/streamguard/pkg/io"
	"github.com/hed1ad/streamguard/pkg/io/pcap"
)

var errNoLiveCapture = errors.New("live capture is not available: rebuild with -tags pcap")

func openLive(string, pcap.Signal) (sgio.Reader, error) {
	return nil, errNoLiveCapture
}
