package mqtt

import (
	"fmt"
	"strings"
)

// maxTopicLength is the MQTT limit on UTF-8 encoded topic length.
const maxTopicLength = 65535

// Wildcards.
const (
	// WildcardSingle matches exactly one topic level ("doorbell/+/events").
	WildcardSingle = "+"

	// WildcardMulti matches any number of trailing levels ("doorbell/#").
	WildcardMulti = "#"
)

// ValidateTopicFilter checks a subscription filter.
//
// Rules:
//   - Non-empty, at most 65535 bytes, no NUL characters
//   - "+" must occupy a whole level
//   - "#" must occupy a whole level and be the last level
//
// Example:
//
//	mqtt.ValidateTopicFilter("doorbell/+/events") // nil
//	mqtt.ValidateTopicFilter("doorbell/#/front")  // ErrInvalidTopic
func ValidateTopicFilter(filter string) error {
	if err := validateTopicBasics(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, WildcardMulti) {
			if level != WildcardMulti || i != len(levels)-1 {
				return fmt.Errorf("%w: %q: '#' must be the whole last level", ErrInvalidTopic, filter)
			}
		}
		if strings.Contains(level, WildcardSingle) && level != WildcardSingle {
			return fmt.Errorf("%w: %q: '+' must be a whole level", ErrInvalidTopic, filter)
		}
	}
	return nil
}

// ValidatePublishTopic checks a topic name used for publishing.
// Wildcards are not allowed.
func ValidatePublishTopic(topic string) error {
	if err := validateTopicBasics(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, WildcardSingle+WildcardMulti) {
		return fmt.Errorf("%w: %q: wildcards not allowed when publishing", ErrInvalidTopic, topic)
	}
	return nil
}

func validateTopicBasics(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic exceeds %d bytes", ErrInvalidTopic, maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}
	return nil
}
