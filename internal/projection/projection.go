// Package projection derives the display-ready view of a room from a
// raw tree snapshot: the question list in store enumeration order, like
// counts, and the viewer's own like id.
package projection

import (
	"github.com/askroom/backend/internal/store"
)

// Author is a question author as displayed.
type Author struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// QuestionView is a question with its derived fields. LikeID is the key
// of the viewer's like record, empty when the viewer is signed out or
// has not liked the question.
type QuestionView struct {
	ID            string `json:"id"`
	Content       string `json:"content"`
	Author        Author `json:"author"`
	IsHighlighted bool   `json:"isHighlighted"`
	IsAnswered    bool   `json:"isAnswered"`
	LikeCount     int    `json:"likeCount"`
	LikeID        string `json:"likeId,omitempty"`
}

// RoomView is the projected state of one room.
type RoomView struct {
	Title     string         `json:"title"`
	AuthorID  string         `json:"authorId"`
	ClosedAt  string         `json:"closedAt,omitempty"`
	Questions []QuestionView `json:"questions"`
}

// Project derives the room view from a snapshot. Pure: no side effects,
// identical output for identical input. Question order follows the
// store's enumeration order; no client-side sort is applied. Called in
// full on every snapshot, so the last snapshot to arrive wins.
func Project(room *store.Tree, viewerID string) RoomView {
	view := RoomView{
		Title:     room.Child("title").Str(),
		AuthorID:  room.Child("authorId").Str(),
		ClosedAt:  room.Child("closedAt").Str(),
		Questions: []QuestionView{},
	}
	questions := room.Child("questions")
	for _, id := range questions.Keys() {
		q := questions.Child(id)
		likes := q.Child("likes")
		qv := QuestionView{
			ID:      id,
			Content: q.Child("content").Str(),
			Author: Author{
				Name:   q.Child("author").Child("name").Str(),
				Avatar: q.Child("author").Child("avatar").Str(),
			},
			IsHighlighted: q.Child("isHighlighted").Bool(),
			IsAnswered:    q.Child("isAnswered").Bool(),
			LikeCount:     likes.Len(),
		}
		if viewerID != "" {
			for _, likeID := range likes.Keys() {
				if likes.Child(likeID).Child("authorId").Str() == viewerID {
					qv.LikeID = likeID
					break
				}
			}
		}
		view.Questions = append(view.Questions, qv)
	}
	return view
}
