// Package mqtt connects the KNXnet/IP client to an MQTT broker.
//
// The broker is the outward face of a monitoring session: decoded
// telegrams, discovered gateways and periodic health are published under
// a configurable topic prefix, and write commands for group addresses
// arrive on the command subtree.
//
//	knxip/telegram/{ga}   decoded group telegram (not retained)
//	knxip/gateway/{addr}  discovered gateway (retained)
//	knxip/health          session statistics (retained)
//	knxip/status          online/offline, also the Last Will
//	knxip/command/{ga}    inbound write requests
//
// Group addresses in topics are path-escaped, so "1/2/3" becomes
// "1%2F2%2F3" and stays a single topic level.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix)
//	err = client.Subscribe(topics.AllCommands(), 1, handleCommand)
package mqtt
