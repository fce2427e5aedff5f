// Package capture replays KNXnet/IP traffic from pcap and pcapng files.
//
// UDP datagrams to or from the KNXnet/IP port are extracted with
// gopacket and run through the same frame decoder the live session
// uses, so a capture taken with tcpdump or Wireshark can be inspected
// offline:
//
//	f, err := os.Open("site.pcapng")
//	...
//	err = capture.Decode(f, capture.Options{}, func(r capture.Record) error {
//	    fmt.Println(r.Time, r.Frame.Service())
//	    return nil
//	})
package capture
