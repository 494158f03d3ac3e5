package domain

import "strings"

// RelationshipEdge links two record ids independently of any foreign-key
// field embedded in a record body. Edges are undirected for deduplication
// purposes: {a,b} and {b,a} are the same pair.
type RelationshipEdge struct {
	ID      string `json:"id"`
	FromID  string `json:"fromId"`
	ToID    string `json:"toId"`
	EdgeKey string `json:"edgeKey"`
}

// CanonicalEdgeKey builds the stable key for an unordered id pair. Endpoints
// sort lexically so both orientations of an edge produce the same key.
func CanonicalEdgeKey(fromID, toID string) string {
	if strings.Compare(fromID, toID) > 0 {
		fromID, toID = toID, fromID
	}
	return fromID + "|" + toID
}

// Rekey recomputes EdgeKey from the current endpoints.
func (e *RelationshipEdge) Rekey() {
	e.EdgeKey = CanonicalEdgeKey(e.FromID, e.ToID)
}

// Touches reports whether either endpoint is the given id.
func (e *RelationshipEdge) Touches(id string) bool {
	return e.FromID == id || e.ToID == id
}
