package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "scanctl"

// Topics builds the console's MQTT topic names under a common prefix.
//
//	topics := mqtt.NewTopics("scanctl")
//	topics.DispatchProgress("3f2a...") // scanctl/dispatch/3f2a.../progress
type Topics struct {
	Prefix string
}

// NewTopics returns a topic builder for prefix, trimming slashes.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// DispatchProgress returns the topic for frame progress of one run.
//
// Example: scanctl/dispatch/{run}/progress
func (t Topics) DispatchProgress(runID string) string {
	return t.prefix() + "/dispatch/" + runID + "/progress"
}

// DispatchCompleted returns the topic for the final tally of one run.
//
// Example: scanctl/dispatch/{run}/completed
func (t Topics) DispatchCompleted(runID string) string {
	return t.prefix() + "/dispatch/" + runID + "/completed"
}

// DispatchCancel is the inbound topic that cancels the active run.
//
// Example: scanctl/dispatch/cancel
func (t Topics) DispatchCancel() string {
	return t.prefix() + "/dispatch/cancel"
}

// AllDispatch matches every dispatch topic.
//
// Pattern: scanctl/dispatch/#
func (t Topics) AllDispatch() string {
	return t.prefix() + "/dispatch/#"
}

// RegistryChanged returns the topic announcing registry mutations.
//
// Example: scanctl/registry/changed
func (t Topics) RegistryChanged() string {
	return t.prefix() + "/registry/changed"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: scanctl/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}
