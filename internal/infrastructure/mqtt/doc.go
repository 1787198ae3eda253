// Package mqtt publishes the console's dispatch events to an MQTT broker
// and listens for remote cancel requests.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and a 1MB payload limit
//   - Subscriptions restored after reconnect
//   - Last Will and Testament on the system status topic
//
// # Topics
//
//	scanctl/system/status               retained online/offline status
//	scanctl/dispatch/{run}/progress     {"current":n,"total":m}
//	scanctl/dispatch/{run}/completed    final tally of the run
//	scanctl/dispatch/cancel             inbound: cancel the active run
//	scanctl/registry/changed            controller and unit changes
//
// The prefix is configurable (mqtt.topic_prefix).
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().DispatchCompleted(runID), outcome)
//
// TLS should be enabled (mqtt.broker.tls) when the broker is not on the
// console host.
package mqtt
