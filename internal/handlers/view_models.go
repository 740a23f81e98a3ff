package handlers

import (
	"fmt"

	"nia/internal/models"
	"nia/internal/service"
)

const (
	assistantAvatar    = "🌟"
	userAvatar         = "😊"
	noAchievementsText = "Complete challenges to earn achievements!"
	chatPlaceholder    = "Type your question... ✨"
)

// Welcome page tabs
const (
	tabRegister = "register"
	tabLogin    = "login"
)

// RegisterFormView keeps what the student typed when the form is shown again
type RegisterFormView struct {
	Name            string
	Age             int
	Grade           int
	StepByStep      bool
	VisualLearner   bool
	LiteralLanguage bool
	FavoriteTopic   string
	ReadingChoice   string
	GrownUpEmail    string
}

type ReadingOption struct {
	Value string
	Label string
}

var readingOptions = []ReadingOption{
	{Value: string(models.ReadingSameAsGrade), Label: "Same as my grade"},
	{Value: string(models.ReadingEasier), Label: "I prefer easier words"},
	{Value: string(models.ReadingHarder), Label: "I can read harder books"},
}

type WelcomeViewData struct {
	Title          string
	CSRFToken      string
	ActiveTab      string
	RegisterError  string
	LoginError     string
	Form           RegisterFormView
	StudentIDInput string
	ReadingOptions []ReadingOption
	MinAge         int
	MaxAge         int
	MinGrade       int
	MaxGrade       int
	EmailEnabled   bool
}

func newWelcomeViewData(csrfToken string, emailEnabled bool) WelcomeViewData {
	return WelcomeViewData{
		Title:          appTitle,
		CSRFToken:      csrfToken,
		ActiveTab:      tabRegister,
		Form:           RegisterFormView{Age: 10, Grade: 5, ReadingChoice: string(models.ReadingSameAsGrade)},
		ReadingOptions: readingOptions,
		MinAge:         models.MinAge,
		MaxAge:         models.MaxAge,
		MinGrade:       models.MinGrade,
		MaxGrade:       models.MaxGrade,
		EmailEnabled:   emailEnabled,
	}
}

type RegisteredViewData struct {
	Title         string
	StudentName   string
	StudentID     string
	EmailSent     bool
	RedirectAfter int // seconds
}

type MessageView struct {
	Role    string
	Avatar  string
	Content string
}

type QuickTopicView struct {
	Topic    string
	Label    string
	Selected bool
}

// ChatViewData is everything the chat page shows. It is derived from the
// session and never changes it.
type ChatViewData struct {
	Title              string
	CSRFToken          string
	StudentName        string
	StudentID          string
	Messages           []MessageView
	Pending            bool
	Error              string
	QuestionsAsked     int
	TopicsExplored     int
	Topics             []string
	Achievements       []string
	NoAchievementsText string
	QuickTopics        []QuickTopicView
	Prompt             string
	Placeholder        string
	Celebrations       []string
}

// NewChatViewData renders a session for the chat page
func NewChatViewData(session *models.Session) ChatViewData {
	data := ChatViewData{
		Title:              appTitle,
		StudentName:        session.StudentName,
		StudentID:          session.StudentID,
		Pending:            session.ChatStatus == models.ChatAwaitingReply,
		QuestionsAsked:     session.QuestionsAsked,
		TopicsExplored:     len(session.TopicsExplored),
		Topics:             make([]string, 0, len(session.TopicsExplored)),
		Achievements:       append([]string{}, session.Achievements...),
		NoAchievementsText: noAchievementsText,
		Placeholder:        chatPlaceholder,
	}

	if session.ChatStatus == models.ChatFailed {
		data.Error = session.LastError
	}

	for _, topic := range session.TopicsExplored {
		data.Topics = append(data.Topics, string(topic))
	}

	if len(session.Messages) == 0 {
		data.Messages = []MessageView{{
			Role:    string(models.RoleAssistant),
			Avatar:  assistantAvatar,
			Content: WelcomeMessage(session.StudentName),
		}}
	} else {
		data.Messages = make([]MessageView, 0, len(session.Messages))
		for _, msg := range session.Messages {
			data.Messages = append(data.Messages, newMessageView(msg))
		}
	}

	for _, topic := range models.AllTopics {
		data.QuickTopics = append(data.QuickTopics, QuickTopicView{
			Topic:    string(topic),
			Label:    topic.Label(),
			Selected: topic == session.QuickTopic,
		})
	}
	if session.QuickTopic.Valid() {
		data.Prompt = service.QuickTopicPrompt(session.QuickTopic)
	}

	return data
}

func newMessageView(msg models.Message) MessageView {
	avatar := userAvatar
	if msg.Role == models.RoleAssistant {
		avatar = assistantAvatar
	}
	return MessageView{Role: string(msg.Role), Avatar: avatar, Content: msg.Content}
}

// WelcomeMessage greets a student with an empty transcript
func WelcomeMessage(name string) string {
	return fmt.Sprintf("👋 Hi %s! I'm Nia!\n\n"+
		"I'm here to help you learn! Ask me about math, science, reading, history, geography, and more!\n\n"+
		"What would you like to learn today?", name)
}

// ChatState is the JSON form of the chat page
type ChatState struct {
	StudentName    string        `json:"student_name"`
	StudentID      string        `json:"student_id"`
	ChatStatus     string        `json:"chat_status"`
	Error          string        `json:"error,omitempty"`
	Messages       []MessageJSON `json:"messages"`
	QuestionsAsked int           `json:"questions_asked"`
	TopicsExplored []string      `json:"topics_explored"`
	Achievements   []string      `json:"achievements"`
	QuickTopic     string        `json:"quick_topic,omitempty"`
	Prompt         string        `json:"prompt,omitempty"`
}

type MessageJSON struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func newChatState(session *models.Session) ChatState {
	view := NewChatViewData(session)
	state := ChatState{
		StudentName:    session.StudentName,
		StudentID:      session.StudentID,
		ChatStatus:     string(session.ChatStatus),
		Error:          view.Error,
		Messages:       make([]MessageJSON, 0, len(session.Messages)),
		QuestionsAsked: view.QuestionsAsked,
		TopicsExplored: view.Topics,
		Achievements:   view.Achievements,
		QuickTopic:     string(session.QuickTopic),
		Prompt:         view.Prompt,
	}
	for _, msg := range session.Messages {
		state.Messages = append(state.Messages, MessageJSON{Role: string(msg.Role), Content: msg.Content})
	}
	return state
}

// SendResponse is returned by POST /chat for JSON clients
type SendResponse struct {
	Reply           string    `json:"reply"`
	NewAchievements []string  `json:"new_achievements"`
	Celebrations    []string  `json:"celebrations"`
	State           ChatState `json:"state"`
}
