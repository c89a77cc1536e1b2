// Package simulation runs j-majority opinion dynamics to consensus.
//
// A population of N agents holds one of K opinions. In every interaction an
// agent looks at a sample of j peers and adopts the sample's majority opinion,
// breaking ties uniformly at random. A run sweeps K from 2 up to an upper
// bound and records how many interactions each K needed before every agent
// agreed, together with the entropy of the opinion distribution over time.
//
// Two interaction schemes are available. The population model updates one
// randomly chosen agent per interaction. The gossip model updates every agent
// once per round from a snapshot taken before the round, and counts a round as
// one interaction.
//
// Runs can be paused, resumed and aborted while they execute. Control messages
// are broadcast to every instance through a ControlBroadcaster; each instance
// translates them into transitions of its SharedControlState, which the
// execution goroutine consults once per interaction. An aborted run still
// reports the plot and entropy curve it gathered so far.
//
// Progress is streamed to an Observer as Update, Next and Finish events.
// Finish is always the last event an instance publishes.
package simulation
