// Package influxdb records KNX group telegrams as InfluxDB time series.
//
// Each telegram becomes one point in the knx_telegram measurement:
//
//	knx_telegram,ga=1/2/3,dpt=9.001,source=1.1.5,command=write value=21,text="21.00 °C"
//
// Numeric datapoint types get a float "value" field; everything else is
// stored as "raw" hex. Writes go through the non-blocking batched write
// API, so a slow or absent server never stalls the session.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WriteTelegram(tel, dpt)
package influxdb
