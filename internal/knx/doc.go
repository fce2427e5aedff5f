// Package knx implements the KNX bus-level codecs used by the KNXnet/IP
// client: group and individual addresses, datapoint type (DPT)
// conversion, and the CEMI frame carried inside tunnelling requests.
//
// # Decoding
//
// All decoders read through a Cursor and return wrapped sentinel errors
// (ErrTruncated, ErrMalformedCEMI) instead of panicking on short input:
//
//	dec := knx.Decoder{Datapoints: table, Style: knx.StyleThreeLevel}
//	frame, err := dec.DecodeCEMI(raw)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(frame.Text) // "GroupValue_Write 1.1.5 -> 1/2/3: 21.00 °C"
//
// # Datapoint Types
//
// Display renders a payload for a supported DPT and falls back to
// "undefined:0x<hex>" for anything else:
//
//   - DPT 1.xxx: 1-bit (switch, bool, alarm, up/down, ...)
//   - DPT 5.xxx: 1-byte unsigned (percentage, angle, counter)
//   - DPT 9.xxx: 2-byte KNX float (temperature, lux, humidity)
//   - DPT 10/11: time of day and date
//   - DPT 12/13/14: 4-byte counters and IEEE-754 floats
//
// DPTTable and APCITable are immutable after construction and can be
// shared between goroutines.
package knx
