package models

import "time"

type Article struct {
	ID        int64
	SubjectID int64
	UserID    int64
	Title     string
	Content   string
	CreatedAt time.Time

	// Populated by joins on read.
	Author  Author
	Subject Subject
}

type ArticleView struct {
	ArticleID int64         `json:"articleId"`
	Title     string        `json:"title"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
	Author    Author        `json:"author"`
	Subject   SubjectView   `json:"subject"`
	Comments  []CommentView `json:"comments"`
}

type ArticleList struct {
	Articles []ArticleView `json:"articles"`
}
