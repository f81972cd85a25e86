// Package mqtt connects townylog to an MQTT broker.
//
// Log records and money transactions are published as JSON so that other
// services can follow the server's activity without tailing files. The
// client also subscribes to a control topic through which operators can
// toggle the debug channel.
//
// # Topics
//
//	towny/log/{channel}        records of a log channel (QoS 1)
//	towny/money/transaction    money transactions (QoS 1)
//	towny/log/control/debug    {"enabled": bool} commands
//	towny/system/status        retained online/offline status and LWT
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.DebugControl(), 1, handler)
package mqtt
