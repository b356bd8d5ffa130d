package room

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"partyline/apps/server/internal/codec"
	"partyline/apps/server/internal/ledger"
	"partyline/commentary"
	"partyline/events"
	"partyline/game"
	"partyline/game/trivia"
	"partyline/game/wordvote"
)

// Room is one game session. Every mutation runs on the actor goroutine, one
// event at a time.
type Room struct {
	Code string

	deps Deps

	mu           sync.RWMutex
	roster       *game.Roster
	state        game.State
	gameType     game.GameType
	epoch        uint64
	displayID    string
	watchers     map[string]struct{}
	commentaryOn bool
	seq          uint64

	createdAt    time.Time
	lastAccess   time.Time
	lastActivity time.Time

	frame    *events.Frame
	detector *events.Detector
	// dirty forces a state broadcast at the end of the current event.
	dirty bool

	closed   bool
	stopOnce sync.Once
	events   chan Event
	done     chan struct{}
	async    sync.WaitGroup
}

type EventType int

const (
	EventJoinPlayer EventType = iota
	EventJoinDisplay
	EventWatch
	EventUnwatch
	EventConnLost
	EventStartGame
	EventDispatch
	EventRestart
	EventInternal
	EventToggleCommentary
	EventExec
	EventSpeak
	EventClose
)

// Event is a message to the room actor.
type Event struct {
	Type      EventType
	SessionID string
	// Name is the player name for joins and the game event for dispatches.
	Name       string
	GameType   game.GameType
	Options    game.Options
	Action     game.Action
	Enabled    bool
	Epoch      uint64
	Exec       func(current game.Marker)
	Utterances []commentary.Utterance
	Timestamp  time.Time
	Response   chan Reply
}

type Reply struct {
	Player game.Player
	// Member reports whether the session belonged to the room.
	Member bool
	Err    error
}

var (
	ErrRoomClosed      = errors.New("room closed")
	ErrNotMember       = errors.New("join the room first")
	ErrGameInProgress  = errors.New("a game is already in progress")
	ErrEventNotAllowed = errors.New("event not allowed")
)

const eventQueueSize = 256

func New(code string, deps Deps) *Room {
	deps = deps.withDefaults()
	now := deps.Now()
	roster := game.NewRoster()
	state := game.NewLobbyState(code, roster)
	r := &Room{
		Code:         code,
		deps:         deps,
		roster:       roster,
		state:        state,
		watchers:     make(map[string]struct{}),
		commentaryOn: true,
		createdAt:    now,
		lastAccess:   now,
		lastActivity: now,
		frame:        events.Capture(state),
		detector:     events.NewDetector(deps.Detector, deps.Now),
		events:       make(chan Event, eventQueueSize),
		done:         make(chan struct{}),
	}
	r.writeBehind("room", func(ctx context.Context) error {
		return deps.Ledger.RecordRoom(ctx, ledger.RoomRecord{Code: code, CreatedAt: now})
	})

	go r.run()

	log.Printf("[Room %s] Created", code)
	return r
}

func (r *Room) run() {
	ticker := time.NewTicker(r.deps.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-r.events:
			reply := r.handleEvent(event)
			if event.Response != nil {
				event.Response <- reply
			}
		case <-ticker.C:
			r.tick()
		case <-r.done:
			log.Printf("[Room %s] Actor stopped", r.Code)
			return
		}
	}
}

func (r *Room) handleEvent(e Event) Reply {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed && e.Type != EventClose {
		return Reply{Err: ErrRoomClosed}
	}

	prev := r.state
	reply := r.route(e)
	if !r.closed {
		r.commit(prev)
	}
	return reply
}

func (r *Room) route(e Event) Reply {
	switch e.Type {
	case EventJoinPlayer:
		r.touch(e.Timestamp)
		p, err := r.handleJoin(e.SessionID, e.Name)
		return Reply{Player: p, Member: err == nil, Err: err}
	case EventJoinDisplay:
		r.touch(e.Timestamp)
		return Reply{Member: true, Err: r.handleJoinDisplay(e.SessionID)}
	case EventWatch:
		r.watchers[e.SessionID] = struct{}{}
		r.sendState(e.SessionID)
		return Reply{Member: true}
	case EventUnwatch:
		_, ok := r.watchers[e.SessionID]
		delete(r.watchers, e.SessionID)
		return Reply{Member: ok}
	case EventConnLost:
		return Reply{Member: r.handleConnLost(e.SessionID, e.Timestamp)}
	case EventStartGame:
		r.touch(e.Timestamp)
		return Reply{Err: r.handleStart(e.SessionID, e.GameType, e.Options, e.Timestamp)}
	case EventDispatch:
		r.touch(e.Timestamp)
		return Reply{Err: r.handleDispatch(e.SessionID, e.Name, e.Action, e.Timestamp)}
	case EventRestart:
		r.touch(e.Timestamp)
		return Reply{Err: r.handleRestart(e.SessionID)}
	case EventInternal:
		r.handleInternal(e)
		return Reply{}
	case EventToggleCommentary:
		r.touch(e.Timestamp)
		return Reply{Err: r.handleToggleCommentary(e.SessionID, e.Enabled)}
	case EventExec:
		if e.Exec != nil {
			e.Exec(game.MarkerOf(r.state, r.epoch))
		}
		return Reply{}
	case EventSpeak:
		r.handleSpeak(e.Utterances)
		return Reply{}
	case EventClose:
		r.stopLocked()
		return Reply{}
	default:
		return Reply{Err: fmt.Errorf("unknown event type: %d", e.Type)}
	}
}

func (r *Room) touch(at time.Time) {
	if at.After(r.lastAccess) {
		r.lastAccess = at
	}
}

func (r *Room) handleJoin(sessionID, rawName string) (game.Player, error) {
	name := game.CleanName(rawName, r.deps.MaxNameLength)

	// A session that rejoins under another name gives up its old seat.
	if prev := r.roster.BySession(sessionID); prev != nil && prev.Name != name {
		prev.Connected = false
		prev.SessionID = ""
	}

	p := r.roster.ByName(name)
	if p != nil {
		p.SessionID = sessionID
		p.Connected = true
		log.Printf("[Room %s] Player %s (%s) reconnected", r.Code, p.Name, p.ID)
	} else {
		p = &game.Player{
			ID:        uuid.NewString(),
			Name:      name,
			RoomCode:  r.Code,
			Connected: true,
			SessionID: sessionID,
		}
		r.roster.Add(p)
		log.Printf("[Room %s] Player %s (%s) joined", r.Code, p.Name, p.ID)
	}
	if r.displayID == sessionID {
		r.displayID = ""
	}

	r.sendTo(sessionID, r.envelope(codec.TypeJoined, codec.JoinedPayload{PlayerID: p.ID, Name: p.Name}))
	r.broadcast(r.envelope(codec.TypePlayerJoined, codec.ToPlayerView(p)))
	r.rosterChanged()
	r.dirty = true
	return *p, nil
}

func (r *Room) handleJoinDisplay(sessionID string) error {
	if p := r.roster.BySession(sessionID); p != nil {
		p.Connected = false
		p.SessionID = ""
		r.rosterChanged()
	}
	if r.displayID != "" && r.displayID != sessionID {
		log.Printf("[Room %s] Display replaced", r.Code)
	}
	r.displayID = sessionID
	r.sendTo(sessionID, r.envelope(codec.TypeJoined, codec.JoinedPayload{Display: true}))
	r.sendState(sessionID)
	return nil
}

func (r *Room) handleConnLost(sessionID string, at time.Time) bool {
	if sessionID == "" {
		return false
	}
	member := false
	if r.displayID == sessionID {
		r.displayID = ""
		member = true
		log.Printf("[Room %s] Display disconnected", r.Code)
	}
	if _, ok := r.watchers[sessionID]; ok {
		delete(r.watchers, sessionID)
		member = true
	}
	if p := r.roster.BySession(sessionID); p != nil {
		p.Connected = false
		p.SessionID = ""
		member = true
		log.Printf("[Room %s] Player %s (%s) disconnected", r.Code, p.Name, p.ID)
		r.rosterChanged()
	}
	if member {
		r.touch(at)
	}
	return member
}

// rosterChanged lets the active game re-evaluate quorum.
func (r *Room) rosterChanged() {
	if r.gameType == "" {
		return
	}
	r.apply(r.deps.Games.Dispatch(r.gameType, game.EventRosterChanged, r.state, nil, game.Action{At: r.deps.Now()}))
}

func (r *Room) isMember(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	return sessionID == r.displayID || r.roster.BySession(sessionID) != nil
}

func (r *Room) handleStart(sessionID string, t game.GameType, opts game.Options, at time.Time) error {
	if !r.isMember(sessionID) {
		return ErrNotMember
	}
	if inProgress(r.state) {
		return ErrGameInProgress
	}
	opts.At = at
	if opts.Seed == 0 {
		opts.Seed = at.UnixNano()
	}
	res, err := r.deps.Games.InitializeGame(t, r.Code, r.roster, opts)
	if err != nil {
		return err
	}

	r.resetTimers()
	r.roster.ResetScores()
	r.gameType = t
	r.deps.Commentary.ResetGame(r.Code)
	r.detector.ResetIdleTimer()
	r.apply(res)
	log.Printf("[Room %s] Game %s started (epoch=%d)", r.Code, t, r.epoch)
	return nil
}

func (r *Room) handleRestart(sessionID string) error {
	if !r.isMember(sessionID) {
		return ErrNotMember
	}
	if r.gameType == "" {
		return nil
	}
	from := game.PhaseOf(r.state)
	if from != game.PhaseLobby && !r.deps.Games.IsValidTransition(r.gameType, from, game.PhaseLobby) {
		return fmt.Errorf("%w: restart from %s", ErrEventNotAllowed, from)
	}
	r.resetTimers()
	r.state = r.deps.Games.ResetToLobby(r.gameType, r.state)
	r.checkAliasing()
	r.deps.Commentary.ResetGame(r.Code)
	log.Printf("[Room %s] Restarted to lobby (epoch=%d)", r.Code, r.epoch)
	return nil
}

// resetTimers drops every pending timeout and starts a new epoch, so late
// async completions from the previous one are discarded too.
func (r *Room) resetTimers() {
	if r.deps.Scheduler != nil {
		if n := r.deps.Scheduler.CancelAll(r.Code); n > 0 {
			log.Printf("[Room %s] Cancelled %d pending timeouts", r.Code, n)
		}
	}
	r.epoch++
}

func (r *Room) handleDispatch(sessionID, event string, a game.Action, at time.Time) error {
	actor := r.roster.BySession(sessionID)
	isDisplay := sessionID != "" && sessionID == r.displayID
	if actor == nil && !(isDisplay && event == game.VerbNextRound) {
		return ErrNotMember
	}
	if r.gameType == "" {
		return nil
	}
	switch event {
	case game.VerbSubmit, game.VerbVote, game.VerbNextRound:
	default:
		c := r.deps.Games.Get(r.gameType)
		if c == nil || !c.AllowsClientEvent(event) {
			return fmt.Errorf("%w: %q", ErrEventNotAllowed, event)
		}
	}
	a.At = at
	r.apply(r.deps.Games.Dispatch(r.gameType, event, r.state, actor, a))
	return nil
}

func (r *Room) handleInternal(e Event) {
	if e.Epoch != r.epoch {
		log.Printf("[Room %s] Discarded %s from epoch %d (now %d)", r.Code, e.Name, e.Epoch, r.epoch)
		return
	}
	if r.gameType == "" {
		return
	}
	a := e.Action
	a.At = e.Timestamp
	r.apply(r.deps.Games.Dispatch(r.gameType, e.Name, r.state, nil, a))
}

func (r *Room) handleToggleCommentary(sessionID string, enabled bool) error {
	if !r.isMember(sessionID) {
		return ErrNotMember
	}
	r.commentaryOn = enabled
	r.deps.Commentary.SetEnabled(r.Code, enabled)
	r.dirty = true
	return nil
}

func (r *Room) handleSpeak(utts []commentary.Utterance) {
	if !r.commentaryOn {
		return
	}
	for _, u := range utts {
		r.broadcast(r.envelope(codec.TypeSpeak, codec.SpeakPayload{
			PersonaID:   u.PersonaID,
			PersonaName: u.PersonaName,
			Text:        u.Text,
			Voice:       u.Voice,
			Emotion:     u.Emotion,
			Priority:    u.Priority,
			Event:       string(u.Event),
		}))
	}
}

// apply adopts a handler result and interprets its effects against the new
// state.
func (r *Room) apply(res game.Result) {
	if res.State != nil {
		r.state = res.State
	}
	r.checkAliasing()
	marker := game.MarkerOf(r.state, r.epoch)
	for _, eff := range res.Effects {
		r.interpret(eff, marker)
	}
}

func (r *Room) checkAliasing() {
	if players := game.PlayersOf(r.state); players != r.roster {
		log.Printf("[Room %s] state %T carries a detached roster, re-aliasing", r.Code, r.state)
		r.state = realias(r.state, r.roster)
	}
}

func realias(s game.State, roster *game.Roster) game.State {
	switch st := s.(type) {
	case *game.LobbyState:
		next := *st
		next.Players = roster
		return &next
	case *wordvote.State:
		next := *st
		next.Players = roster
		return &next
	case *trivia.State:
		next := *st
		next.Players = roster
		return &next
	}
	return s
}

// commit runs after every event: it detects game events, persists what
// changed and broadcasts the new state when anything visible moved.
func (r *Room) commit(prev game.State) {
	cur := events.Capture(r.state)
	prevFrame := r.frame
	changed := r.dirty || prev != r.state || !slices.Equal(prevFrame.Players, cur.Players)
	r.dirty = false
	if !changed {
		return
	}
	r.frame = cur
	r.lastActivity = r.deps.Now()

	evs := r.detector.Detect(prevFrame, cur)
	if len(evs) > 0 {
		r.detector.ResetIdleTimer()
		r.deps.Commentary.Comment(r.Code, evs)
	}
	if prev != r.state {
		r.persist(prev, r.state)
	}
	r.broadcastState()
}

func (r *Room) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if ev := r.detector.CheckIdle(r.frame); ev != nil {
		r.deps.Commentary.Comment(r.Code, []events.Event{*ev})
	}
}

// SubmitEvent queues e and waits for the actor to process it.
func (r *Room) SubmitEvent(e Event) (Reply, error) {
	e.Timestamp = r.deps.Now()
	if e.Response == nil {
		e.Response = make(chan Reply, 1)
	}

	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return Reply{}, ErrRoomClosed
	}

	select {
	case r.events <- e:
	case <-r.done:
		return Reply{}, ErrRoomClosed
	}

	select {
	case reply := <-e.Response:
		return reply, reply.Err
	case <-r.done:
		return Reply{}, ErrRoomClosed
	}
}

func (r *Room) Join(sessionID, name string) (game.Player, error) {
	reply, err := r.SubmitEvent(Event{Type: EventJoinPlayer, SessionID: sessionID, Name: name})
	return reply.Player, err
}

func (r *Room) JoinDisplay(sessionID string) error {
	_, err := r.SubmitEvent(Event{Type: EventJoinDisplay, SessionID: sessionID})
	return err
}

func (r *Room) Watch(sessionID string) error {
	_, err := r.SubmitEvent(Event{Type: EventWatch, SessionID: sessionID})
	return err
}

func (r *Room) Unwatch(sessionID string) {
	_, _ = r.SubmitEvent(Event{Type: EventUnwatch, SessionID: sessionID})
}

// Disconnect reports whether the session belonged to the room.
func (r *Room) Disconnect(sessionID string) bool {
	reply, err := r.SubmitEvent(Event{Type: EventConnLost, SessionID: sessionID})
	return err == nil && reply.Member
}

func (r *Room) StartGame(sessionID string, t game.GameType, opts game.Options) error {
	_, err := r.SubmitEvent(Event{Type: EventStartGame, SessionID: sessionID, GameType: t, Options: opts})
	return err
}

// Dispatch sends a client verb or whitelisted custom event to the game.
func (r *Room) Dispatch(sessionID, event string, a game.Action) error {
	_, err := r.SubmitEvent(Event{Type: EventDispatch, SessionID: sessionID, Name: event, Action: a})
	return err
}

func (r *Room) Restart(sessionID string) error {
	_, err := r.SubmitEvent(Event{Type: EventRestart, SessionID: sessionID})
	return err
}

func (r *Room) ToggleCommentary(sessionID string, enabled bool) error {
	_, err := r.SubmitEvent(Event{Type: EventToggleCommentary, SessionID: sessionID, Enabled: enabled})
	return err
}

// Exec runs fn on the actor with the room's current marker.
func (r *Room) Exec(fn func(current game.Marker)) bool {
	_, err := r.SubmitEvent(Event{Type: EventExec, Exec: fn})
	return err == nil
}

// Speak broadcasts commentary lines produced for this room.
func (r *Room) Speak(utts []commentary.Utterance) error {
	_, err := r.SubmitEvent(Event{Type: EventSpeak, Utterances: utts})
	return err
}

// Stop shuts down the room actor.
func (r *Room) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Room) stopLocked() {
	r.closed = true
	r.stopOnce.Do(func() {
		close(r.done)
	})
}

func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Expired reports whether the idle sweep may remove the room: nobody is
// connected, it was not accessed within idleTimeout and nothing happened in
// it within buffer.
func (r *Room) Expired(now time.Time, idleTimeout, buffer time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return true
	}
	if r.displayID != "" || r.roster.ConnectedCount() > 0 {
		return false
	}
	if now.Sub(r.lastAccess) < idleTimeout {
		return false
	}
	return now.Sub(r.lastActivity) >= buffer
}

// WaitAsync blocks until in-flight collaborator calls and ledger writes
// issued by the room have returned.
func (r *Room) WaitAsync() {
	r.async.Wait()
}

// State returns the current state. States are never mutated after being
// adopted, but the roster they point to is; use Players for a stable copy.
func (r *Room) State() game.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Room) Players() []game.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.roster.All()
	out := make([]game.Player, 0, len(all))
	for _, p := range all {
		out = append(out, *p)
	}
	return out
}

func (r *Room) Marker() game.Marker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return game.MarkerOf(r.state, r.epoch)
}

func (r *Room) DisplayID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.displayID
}

type Summary struct {
	Code      string        `json:"code"`
	GameType  game.GameType `json:"gameType,omitempty"`
	Phase     game.Phase    `json:"phase"`
	Players   int           `json:"players"`
	Connected int           `json:"connected"`
	Display   bool          `json:"display"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (r *Room) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Summary{
		Code:      r.Code,
		GameType:  r.gameType,
		Phase:     game.PhaseOf(r.state),
		Players:   r.roster.Len(),
		Connected: r.roster.ConnectedCount(),
		Display:   r.displayID != "",
		CreatedAt: r.createdAt,
	}
}

func inProgress(s game.State) bool {
	switch st := s.(type) {
	case *game.LobbyState:
		return false
	case *wordvote.State:
		return st.Phase != game.PhaseLobby && !st.IsFinal()
	case *trivia.State:
		return st.Phase != game.PhaseLobby && !st.IsFinal()
	}
	return game.PhaseOf(s) != game.PhaseLobby
}
