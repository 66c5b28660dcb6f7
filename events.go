package main

import (
	"time"

	"parley/entitlement"
	"parley/player"
	"parley/statusbus"
)

// Bubble Tea messages produced by background work. Everything async
// funnels through these so the model stays single-threaded.

type playbackMsg struct{ Event player.Event }

type statusEventMsg struct{ Event statusbus.Event }

type usageMsg struct{ Snapshot entitlement.Snapshot }

type answerMsg struct {
	Text string
	Err  error
}

type improvedMsg struct {
	Text     string
	Snapshot entitlement.Snapshot
	Blocked  bool
	Err      error
}

type recordTickMsg time.Time

type clearNoticeMsg struct{}
