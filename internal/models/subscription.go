package models

type Subscription struct {
	ID        int64
	UserID    int64
	SubjectID int64
	Subject   Subject
}

type SubscriptionView struct {
	SubscriptionID     int64  `json:"subscriptionId"`
	SubjectID          int64  `json:"subjectId"`
	SubjectName        string `json:"subjectName"`
	SubjectDescription string `json:"subjectDescription"`
}
