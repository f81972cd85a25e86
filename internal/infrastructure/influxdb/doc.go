// Package influxdb writes money transactions to InfluxDB as time-series
// points, so economy activity can be charted alongside server metrics.
//
// It wraps the official influxdb-client-go v2 library. Writes are batched
// and non-blocking: a slow or unreachable server never holds up the money
// channel.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) {
//	    logger.Warn("influxdb write failed", "error", err)
//	})
//
//	moneySink := sink.NewInflux("influxdb", client)
package influxdb
