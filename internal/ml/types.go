package ml

// CareerInput is the profile slice sent to /predict-career.
type CareerInput struct {
	Education   string   `json:"education"`
	Experience  string   `json:"experience"`
	Skills      []string `json:"skills"`
	Interests   []string `json:"interests"`
	CareerGoals string   `json:"careerGoals"`
}

type Prediction struct {
	Career         string   `json:"career"`
	Confidence     float64  `json:"confidence"`
	RequiredSkills []string `json:"required_skills"`
}

type predictResponse struct {
	Predictions []Prediction `json:"predictions"`
}

type MenteeInput struct {
	Skills      []string `json:"skills"`
	Interests   []string `json:"interests"`
	CareerGoals string   `json:"careerGoals"`
}

type MentorInput struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Expertise  []string `json:"expertise"`
	Bio        string   `json:"bio"`
	Experience string   `json:"experience"`
}

type MatchRequest struct {
	Mentee  MenteeInput   `json:"mentee"`
	Mentors []MentorInput `json:"mentors"`
}

// Match is one ranked mentor as scored by the ML service.
type Match struct {
	MentorID   string   `json:"mentor_id"`
	MentorName string   `json:"mentor_name,omitempty"`
	Score      float64  `json:"score"`
	Expertise  []string `json:"expertise,omitempty"`
	Bio        string   `json:"bio,omitempty"`
}

type matchResponse struct {
	Matches []Match `json:"matches"`
}
