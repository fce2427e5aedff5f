// Package knxnetip implements the KNXnet/IP frame model: the 6-byte
// header, HPAI and DIB structures, and the body variants exchanged
// during discovery, connection management and tunnelling.
//
// Frames form a closed union behind the Frame interface. Decode
// dispatches on the service type and Encode is its byte-exact inverse:
//
//	f, err := knxnetip.Decode(datagram)
//	switch {
//	case errors.Is(err, knxnetip.ErrUnknownServiceType):
//	    // unsolicited traffic, ignore
//	case err != nil:
//	    log.Warn("bad datagram", "raw_hex", knx.ToHex(datagram), "error", err)
//	}
//	if resp, ok := f.(knxnetip.SearchResponseFrame); ok {
//	    info, _ := resp.DIBs.DeviceInfo()
//	    fmt.Println(info.Name)
//	}
//
// Security services are enumerated but never parsed; they decode to
// AnyBody.
package knxnetip
