package models

// Special needs tags understood by the tutoring service
const (
	NeedAutism                    = "autism"
	NeedStepByStep                = "step_by_step_instructions"
	NeedClearCommunication        = "clear_communication"
	NeedVisualLearner             = "visual_learner"
	NeedLiteralLanguagePreference = "literal_language_preference"
)

// DefaultInterests are sent for every new student
var DefaultInterests = []string{"learning", "reading"}

// ReadingChoice adjusts the reading level relative to the grade
type ReadingChoice string

const (
	ReadingSameAsGrade ReadingChoice = "same"
	ReadingEasier      ReadingChoice = "easier"
	ReadingHarder      ReadingChoice = "harder"
)

// Age, grade and reading level bounds
const (
	MinAge          = 5
	MaxAge          = 18
	MinGrade        = 1
	MaxGrade        = 12
	MinReadingLevel = 1
	MaxReadingLevel = 12
)

// StudentProfile is the record sent to the tutoring service on registration
type StudentProfile struct {
	Name         string   `json:"name"`
	Age          int      `json:"age"`
	Grade        int      `json:"grade"`
	SpecialNeeds []string `json:"special_needs"`
	Interests    []string `json:"interests"`
	ReadingLevel int      `json:"reading_level"`
}
