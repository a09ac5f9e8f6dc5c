// Package mqtt provides the broker connection used by the AC bridge.
//
// This package manages:
//   - Connection to the broker with the transport's bounded auto-reconnect
//   - Subscriptions, restored in their original order after every reconnect
//   - Fire-and-forget publishing with a completion callback
//   - The topic codec for the <namespace>/{brand}/{deviceId}/{channel} hierarchy
//
// # Architecture
//
// Field devices (ESP32 relays) publish to the broker; the bridge relays their
// traffic to dashboard WebSocket clients and publishes commands back.
//
//	Devices ↔ MQTT Broker ↔ AC bridge ↔ Dashboards
//
// # Topics
//
//	ac/{brand}/{deviceId}/data     device → bridge
//	ac/{brand}/{deviceId}/status   device → bridge
//	ac/{brand}/{deviceId}/cmd      bridge → device
//	ac/broadcast/registry          relay → bridge (inventory announcement)
//	ac/broadcast/cmd               bridge → all devices
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics("ac")
//	err = client.Subscribe(topics.DataPattern(), 1,
//	    func(topic string, payload []byte) error {
//	        t, err := topics.Parse(topic)
//	        ...
//	    })
//
//	client.PublishAsync(topics.Command("daikin", "esp01"), payload, 1, false, nil)
package mqtt
