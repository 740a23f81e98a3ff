package service

import (
	"strings"

	"nia/internal/models"
)

// topicKeywords maps each topic to the substrings that reveal it
var topicKeywords = []struct {
	topic    models.Topic
	keywords []string
}{
	{models.TopicMath, []string{"math", "number", "calculate"}},
	{models.TopicScience, []string{"science", "experiment"}},
	{models.TopicReading, []string{"read", "book", "spell"}},
	{models.TopicHistory, []string{"history", "past"}},
	{models.TopicGeography, []string{"geography", "country", "map"}},
}

// Achievement thresholds
const (
	firstStepsQuestions = 5
	explorerTopics      = 3
)

// DetectTopics returns the topics whose keywords appear in text
func DetectTopics(text string) []models.Topic {
	lower := strings.ToLower(text)

	var topics []models.Topic
	for _, tk := range topicKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, tk.topic)
				break
			}
		}
	}
	return topics
}

// EvaluateAchievements unlocks any achievement the session now qualifies for
// and returns the ones unlocked by this call
func EvaluateAchievements(session *models.Session) []string {
	var unlocked []string

	if session.QuestionsAsked == firstStepsQuestions && session.Unlock(models.AchievementFirstSteps) {
		unlocked = append(unlocked, models.AchievementFirstSteps)
	}
	if len(session.TopicsExplored) >= explorerTopics && session.Unlock(models.AchievementExplorer) {
		unlocked = append(unlocked, models.AchievementExplorer)
	}

	return unlocked
}

// recordExchange applies the progress of one successful question
func recordExchange(session *models.Session, question string) []string {
	session.QuestionsAsked++
	for _, topic := range DetectTopics(question) {
		session.AddTopic(topic)
	}
	return EvaluateAchievements(session)
}
