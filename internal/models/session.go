package models

import "time"

// Session is what the client receives after login, register or refresh.
type Session struct {
	UserID           string    `json:"userId"`
	Email            string    `json:"email"`
	Role             Role      `json:"role"`
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	IssuedAt         time.Time `json:"issuedAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// SessionRecord is the server-side half of a session. There is at most one
// per user; raw tokens are never stored.
type SessionRecord struct {
	UserID           string    `bson:"_id"`
	SessionID        string    `bson:"sessionId"`
	Role             Role      `bson:"role"`
	RefreshHash      string    `bson:"refreshHash"`
	IssuedAt         time.Time `bson:"issuedAt"`
	ExpiresAt        time.Time `bson:"expiresAt"`
	RefreshExpiresAt time.Time `bson:"refreshExpiresAt"`
}
