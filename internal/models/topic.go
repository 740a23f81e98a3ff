package models

import "strings"

// Topic is one of the fixed subject categories
type Topic string

const (
	TopicMath      Topic = "Math"
	TopicScience   Topic = "Science"
	TopicReading   Topic = "Reading"
	TopicHistory   Topic = "History"
	TopicGeography Topic = "Geography"
)

// AllTopics lists every topic in display order
var AllTopics = []Topic{TopicMath, TopicScience, TopicReading, TopicHistory, TopicGeography}

// topicIcons are shown on the quick-topic buttons
var topicIcons = map[Topic]string{
	TopicMath:      "🔢",
	TopicScience:   "🔬",
	TopicReading:   "📚",
	TopicHistory:   "🏛️",
	TopicGeography: "🌍",
}

// Valid reports whether t is a known topic
func (t Topic) Valid() bool {
	return t.order() >= 0
}

// Icon returns the emoji shown next to the topic
func (t Topic) Icon() string {
	return topicIcons[t]
}

// Label returns the button caption for the topic
func (t Topic) Label() string {
	if icon := t.Icon(); icon != "" {
		return string(t) + " " + icon
	}
	return string(t)
}

func (t Topic) order() int {
	for i, topic := range AllTopics {
		if topic == t {
			return i
		}
	}
	return -1
}

// ParseTopic matches a topic name case-insensitively
func ParseTopic(s string) (Topic, bool) {
	s = strings.TrimSpace(s)
	for _, topic := range AllTopics {
		if strings.EqualFold(string(topic), s) {
			return topic, true
		}
	}
	return "", false
}
