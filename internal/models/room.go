// Package models defines the record shapes written to the tree store.
// Field names are the store-level JSON keys; questions and likes live
// as separate records under their own paths, not inline in the room.
package models

// Author is the question author's profile, denormalized into the
// question at creation time. It never updates afterwards.
type Author struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Room is the record written at rooms/{roomId}. ClosedAt is merged in
// when the owner closes the room.
type Room struct {
	Title    string `json:"title"`
	AuthorID string `json:"authorId"`
}

// Question is the record written at rooms/{roomId}/questions/{questionId}.
type Question struct {
	Content       string `json:"content"`
	Author        Author `json:"author"`
	IsHighlighted bool   `json:"isHighlighted"`
	IsAnswered    bool   `json:"isAnswered"`
}

// Like is the record written at
// rooms/{roomId}/questions/{questionId}/likes/{likeId}.
type Like struct {
	AuthorID string `json:"authorId"`
}
