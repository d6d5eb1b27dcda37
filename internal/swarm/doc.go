// Package swarm pairs mainshocks with the earlier, nearby events that may
// belong to the same seismic sequence.
//
// The search runs in three stages applied in strict order: a magnitude
// threshold selects mainshocks, a half-open day window selects temporal
// candidates from the whole working set, and a great-circle radius decides
// final inclusion.
package swarm
