package fsm

// ResolveCollision implements RFC 4271 §6.8's connection-collision rule for
// two connections to the same peer that both reach OpenConfirm: the
// connection initiated by the speaker with the numerically higher BGP
// Identifier survives. localHigher reports whether the local router-id is
// the higher of the two.
//
// RFC 4271 leaves the equal-identifier tie-break unspecified; this
// implementation's decision (DESIGN.md) is to keep the passively-accepted
// (listener-side) connection in that case. weInitiated decides the result
// in both cases.
func ResolveCollision(localRouterID, peerRouterID uint32, weInitiated bool) (keepThisConnection bool) {
	if localRouterID == peerRouterID {
		return !weInitiated
	}
	localHigher := localRouterID > peerRouterID
	return localHigher == weInitiated
}
