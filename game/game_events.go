package game

import (
	"context"
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/wfunc/wordbot/logger"
	"github.com/wfunc/wordbot/network"
	"github.com/wfunc/wordbot/room"
)

const (
	milestoneSeating = "seating"
	notInDictionary  = "notInDictionary"
)

var unplayable = regexp.MustCompile(`[^a-z-' ]`)

// sanitize strips everything but lowercase letters, hyphens, apostrophes and
// spaces from a typed word.
func sanitize(word string) string {
	return unplayable.ReplaceAllString(word, "")
}

// isSelf reports whether peerID is the bot in room a.
func isSelf(ctx context.Context, a *room.Actor, peerID int64) (bool, error) {
	self, err := a.PeerID(ctx)
	if err != nil {
		return false, err
	}
	return self != 0 && self == peerID, nil
}

// play picks a word for syllable and submits it.
func (d *Dispatcher) play(ctx context.Context, a *room.Actor, conn network.Conn, syllable string) {
	word, err := a.Pick(ctx, syllable)
	if soft(a, network.EventSetWord, err) {
		return
	}
	d.emit(conn, network.EventSetWord, word, true)
}

// onSetup handles [{leaderPeerId, milestone{name}, ...}] sent once after joinGame.
func (d *Dispatcher) onSetup(_ context.Context, a *room.Actor, conn network.Conn, payload gjson.Result) {
	setup := payload.Get("0")
	logger.Log.Debugw("game setup", "room", a.Code(), "leader", setup.Get("leaderPeerId").Int(), "milestone", setup.Get("milestone.name").String())
	if setup.Get("milestone.name").String() == milestoneSeating {
		d.emit(conn, network.EventJoinRound)
	}
}

// onSetMilestone handles [{name, currentPlayerPeerId, syllable}].
func (d *Dispatcher) onSetMilestone(ctx context.Context, a *room.Actor, conn network.Conn, payload gjson.Result) {
	milestone := payload.Get("0")
	if milestone.Get("name").String() == milestoneSeating {
		d.emit(conn, network.EventJoinRound)
	}

	current := milestone.Get("currentPlayerPeerId")
	if !current.Exists() {
		return
	}
	self, err := isSelf(ctx, a, current.Int())
	if soft(a, network.EventSetMilestone, err) || !self {
		return
	}
	syllable := milestone.Get("syllable").String()
	if soft(a, network.EventSetMilestone, a.SetSyllable(ctx, syllable)) {
		return
	}
	d.play(ctx, a, conn, syllable)
}

// onNextTurn handles [peerId, syllable, promptAge].
func (d *Dispatcher) onNextTurn(ctx context.Context, a *room.Actor, conn network.Conn, payload gjson.Result) {
	peerID := payload.Get("0").Int()
	syllable := payload.Get("1").String()

	if soft(a, network.EventNextTurn, a.SetSyllable(ctx, syllable)) {
		return
	}
	self, err := isSelf(ctx, a, peerID)
	if soft(a, network.EventNextTurn, err) || !self {
		return
	}
	d.play(ctx, a, conn, syllable)
}

// onSetPlayerWord handles [peerId, word].
func (d *Dispatcher) onSetPlayerWord(ctx context.Context, a *room.Actor, _ network.Conn, payload gjson.Result) {
	soft(a, network.EventSetPlayerWord, a.SetPlayerWord(ctx, payload.Get("1").String()))
}

// onCorrectWord handles [{playerPeerId}]. The word itself is the last
// candidate seen through setPlayerWord.
func (d *Dispatcher) onCorrectWord(ctx context.Context, a *room.Actor, _ network.Conn, payload gjson.Result) {
	typed, err := a.PlayerWord(ctx)
	if soft(a, network.EventCorrectWord, err) {
		return
	}
	word := sanitize(typed)
	if soft(a, network.EventCorrectWord, a.MarkUsed(ctx, word)) {
		return
	}

	id := payload.Get("0.playerPeerId")
	if !id.Exists() {
		logger.Log.Warnw("correctWord without player", "room", a.Code())
		return
	}
	peerID := id.Int()
	self, err := isSelf(ctx, a, peerID)
	if soft(a, network.EventCorrectWord, err) || self {
		return
	}

	p, err := a.Player(ctx, peerID)
	if soft(a, network.EventCorrectWord, err) {
		return
	}
	if _, err := a.Score(ctx, p.Nickname, peerID, word); soft(a, network.EventCorrectWord, err) {
		return
	}
	_, err = a.IncrementStreak(ctx, peerID)
	soft(a, network.EventCorrectWord, err)
}

// onFailWord handles [peerId, reason]. A word the server rejects as unknown is
// dropped from the dictionary and the bot tries again.
func (d *Dispatcher) onFailWord(ctx context.Context, a *room.Actor, conn network.Conn, payload gjson.Result) {
	if payload.Get("1").String() != notInDictionary {
		return
	}
	self, err := isSelf(ctx, a, payload.Get("0").Int())
	if soft(a, network.EventFailWord, err) || !self {
		return
	}

	word, err := a.PlayerWord(ctx)
	if soft(a, network.EventFailWord, err) {
		return
	}
	if soft(a, network.EventFailWord, a.Remove(ctx, word)) {
		return
	}
	syllable, err := a.Syllable(ctx)
	if soft(a, network.EventFailWord, err) {
		return
	}
	d.play(ctx, a, conn, syllable)
}

// onAddPlayer handles [{profile{peerId, nickname, roles}}]. Older servers send
// the profile fields at the top level.
func (d *Dispatcher) onAddPlayer(ctx context.Context, a *room.Actor, _ network.Conn, payload gjson.Result) {
	player := payload.Get("0")
	if profile := player.Get("profile"); profile.Exists() {
		player = profile
	}
	if !player.Get("peerId").Exists() {
		logger.Log.Warnw("addPlayer without peer id", "room", a.Code())
		return
	}
	err := a.AddPlayer(ctx, player.Get("peerId").Int(), player.Get("nickname").String(), stringsOf(player.Get("roles")))
	soft(a, network.EventAddPlayer, err)
}

// onLivesLost handles [peerId, lives].
func (d *Dispatcher) onLivesLost(ctx context.Context, a *room.Actor, _ network.Conn, payload gjson.Result) {
	peerID := payload.Get("0").Int()
	if soft(a, network.EventLivesLost, a.ResetStreak(ctx, peerID)) {
		return
	}
	if payload.Get("1").Int() != 0 {
		return
	}

	p, err := a.Player(ctx, peerID)
	if soft(a, network.EventLivesLost, err) {
		return
	}
	soft(a, network.EventLivesLost, a.SendChat(ctx, fmt.Sprintf("Well played %s! %s", p.Nickname, statLine(p))))
}

// onBonusAlphabetCompleted handles [peerId, lives].
func (d *Dispatcher) onBonusAlphabetCompleted(ctx context.Context, a *room.Actor, _ network.Conn, payload gjson.Result) {
	peerID := payload.Get("0").Int()
	p, err := a.Player(ctx, peerID)
	if soft(a, network.EventBonusAlphabetCompleted, err) {
		return
	}
	lives, err := a.IncrementLives(ctx, peerID)
	if soft(a, network.EventBonusAlphabetCompleted, err) {
		return
	}
	soft(a, network.EventBonusAlphabetCompleted, a.SendChat(ctx, fmt.Sprintf("%s has gained a life (%d)", p.Nickname, lives)))
}
