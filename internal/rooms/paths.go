package rooms

// Store path schema. Case-sensitive, slash-delimited; ids are opaque
// client-generated tokens.

// RoomPath returns rooms/{roomID}.
func RoomPath(roomID string) string {
	return "rooms/" + roomID
}

// QuestionPath returns rooms/{roomID}/questions/{questionID}.
func QuestionPath(roomID, questionID string) string {
	return RoomPath(roomID) + "/questions/" + questionID
}

// LikesPath returns rooms/{roomID}/questions/{questionID}/likes.
func LikesPath(roomID, questionID string) string {
	return QuestionPath(roomID, questionID) + "/likes"
}

// LikePath returns rooms/{roomID}/questions/{questionID}/likes/{likeID}.
func LikePath(roomID, questionID, likeID string) string {
	return LikesPath(roomID, questionID) + "/" + likeID
}
