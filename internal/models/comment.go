package models

import "time"

type Comment struct {
	ID        int64
	ArticleID int64
	UserID    int64
	Content   string
	CreatedAt time.Time

	AuthorUsername string
}

type CommentView struct {
	CommentID int64     `json:"commentId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Author    string    `json:"author"`
}

func (c Comment) View() CommentView {
	return CommentView{
		CommentID: c.ID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		Author:    c.AuthorUsername,
	}
}
