// Package knxip forwards what a tunnel session sees to the outside world.
//
// The Bridge drains a session's event channel and fans every group
// telegram out to up to four sinks, each optional:
//
//   - MQTT: a JSON TelegramMessage per telegram, a retained
//     GatewayMessage per discovered gateway and periodic health
//   - InfluxDB: one knx_telegram point per telegram
//   - SQLite: the Recorder upserts sources, destinations and gateways
//   - Broadcaster: telegram, gateway and state messages for the API
//     WebSocket hub
//
// In the other direction the bridge subscribes to the MQTT command tree
// and turns {"value": ...} payloads into GroupValue_Write telegrams, or
// {"read": true} into GroupValue_Read. Command is also called by the
// HTTP API; both paths share the optional send rate limit.
//
// A sink failure is logged and counted; it never stops the event loop.
package knxip
