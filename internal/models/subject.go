package models

type Subject struct {
	ID          int64  `json:"subjectId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SubjectView is a subject as seen by a given user.
type SubjectView struct {
	SubjectID   int64  `json:"subjectId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Subscribed  bool   `json:"subscribed"`
}

func (s Subject) View(subscribed bool) SubjectView {
	return SubjectView{
		SubjectID:   s.ID,
		Name:        s.Name,
		Description: s.Description,
		Subscribed:  subscribed,
	}
}
