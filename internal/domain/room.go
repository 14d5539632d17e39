package domain

// RoomID names the meeting a set of participants shares. Rooms have no
// entity of their own: membership lives in the signaling layer and
// media resources in the sfu layer, both keyed by this id.
type RoomID string
