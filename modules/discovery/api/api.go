package api

import (
	"github.com/veil-network/pool-scanner/modules/discovery/api/httphandler"
	"github.com/veil-network/pool-scanner/modules/discovery/datagateway"
)

func NewHTTPHandler(dg datagateway.DiscoveryReaderDataGateway, decimals uint8) *httphandler.HttpHandler {
	return httphandler.New(dg, decimals)
}
