package mqtt

import "fmt"

// TopicPrefix is the root of every topic published by townylog.
const TopicPrefix = "towny"

// Topics provides builders for townylog MQTT topics.
//
//	topic := mqtt.Topics{}.LogChannel("main")
//	// Returns: "towny/log/main"
type Topics struct{}

// LogChannel returns the topic records of a log channel are published on.
//
// Example: towny/log/debug
func (Topics) LogChannel(channel string) string {
	return fmt.Sprintf("%s/log/%s", TopicPrefix, channel)
}

// MoneyTransaction returns the topic money transactions are published on.
func (Topics) MoneyTransaction() string {
	return TopicPrefix + "/money/transaction"
}

// DebugControl returns the command topic that toggles the debug channel.
// Payload: {"enabled": true}
func (Topics) DebugControl() string {
	return TopicPrefix + "/log/control/debug"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllLogChannels returns a wildcard matching every log channel topic.
func (Topics) AllLogChannels() string {
	return TopicPrefix + "/log/+"
}
