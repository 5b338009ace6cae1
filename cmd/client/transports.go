package main

import (
	"net/http"
	"time"

	"github.com/atinyakov/moodmap/internal/client/storage"
	"github.com/gorilla/websocket"
)

// transports holds the network clients of the shell. Only the store side
// trusts the CA given with -ca; geocoding and the host bridge talk to public
// endpoints with the system roots.
type transports struct {
	store  *http.Client
	web    *http.Client
	dialer *websocket.Dialer
}

func newTransports(caFile string) (*transports, error) {
	tlsConf, err := storage.LoadTLSConfig(caFile)
	if err != nil {
		return nil, err
	}
	return &transports{
		store: storage.NewHTTPClient(tlsConf),
		web:   storage.NewHTTPClient(nil),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
			TLSClientConfig:  tlsConf,
		},
	}, nil
}
