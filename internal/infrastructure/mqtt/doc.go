// Package mqtt relays session events to an MQTT broker so external tooling
// can observe the shim's activity. The relay is publish-only and optional;
// when disabled nothing in the shim depends on a broker being present.
package mqtt
