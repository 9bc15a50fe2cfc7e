package connection

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"smartclass/internal/builder"
	"smartclass/internal/domain"
	"smartclass/internal/logging"
)

const (
	DefaultTargetedTimeout = 2 * time.Second
	DefaultShakeTimeout    = 500 * time.Millisecond
	DefaultLineColor       = "#22c55e"
)

var (
	ErrNotConnectable      = errors.New("element is not a connection node")
	ErrNoPair              = errors.New("connection node has no pair")
	ErrGroupOverflow       = errors.New("connection group has more than two nodes")
	ErrConnectionGroupFull = errors.New("connection group already has two nodes")
	ErrAlreadyConnected    = errors.New("connection node is already connected")
	ErrRetryNotAllowed     = errors.New("retry is disabled for this connection")
)

// Timer is the handle returned by a Scheduler.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Tests substitute a manual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemScheduler is backed by time.AfterFunc.
var SystemScheduler Scheduler = systemScheduler{}

// Visual is the transient, render-only state of a node.
type Visual struct {
	Targeted bool `json:"targeted"`
	Shaking  bool `json:"shaking"`
}

// Line is the cached geometry of a drawn connection, in canvas coordinates.
type Line struct {
	SourceID string  `json:"sourceId"`
	TargetID string  `json:"targetId"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	X2       float64 `json:"x2"`
	Y2       float64 `json:"y2"`
	Color    string  `json:"color"`
}

type Options struct {
	TargetedTimeout time.Duration
	ShakeTimeout    time.Duration
	Scheduler       Scheduler
	Logger          *log.Logger
}

type node struct {
	visual      Visual
	targetGen   int
	shakeGen    int
	targetTimer Timer
	shakeTimer  Timer
	unsubscribe func()
}

func (n *node) stopTimers() {
	if n.targetTimer != nil {
		n.targetTimer.Stop()
	}
	if n.shakeTimer != nil {
		n.shakeTimer.Stop()
	}
}

// Coordinator runs the connection exercise of one canvas. Every connection
// node of the store is mounted as a bus listener that reacts to events
// addressed to it; the coordinator itself only broadcasts.
type Coordinator struct {
	store *builder.Store
	bus   *Bus
	opts  Options
	log   *log.Logger

	mu     sync.Mutex
	nodes  map[string]*node
	lines  map[string]Line
	closed bool

	detachStore func()
}

func NewCoordinator(store *builder.Store, bus *Bus, opts Options) *Coordinator {
	if bus == nil {
		bus = NewBus()
	}
	if opts.TargetedTimeout <= 0 {
		opts.TargetedTimeout = DefaultTargetedTimeout
	}
	if opts.ShakeTimeout <= 0 {
		opts.ShakeTimeout = DefaultShakeTimeout
	}
	if opts.Scheduler == nil {
		opts.Scheduler = SystemScheduler
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("connection")
	}
	c := &Coordinator{
		store: store,
		bus:   bus,
		opts:  opts,
		log:   opts.Logger,
		nodes: make(map[string]*node),
		lines: make(map[string]Line),
	}
	c.Sync()
	c.detachStore = store.OnChange(func(ch builder.Change) {
		switch ch.Kind {
		case builder.ChangeElements, builder.ChangeLoaded:
			// Any geometry may have moved, including ancestors of a node.
			c.mu.Lock()
			c.lines = make(map[string]Line)
			c.mu.Unlock()
			c.Sync()
		}
	})
	return c
}

func (c *Coordinator) Bus() *Bus { return c.bus }

// Sync mounts new connection nodes and unmounts removed ones.
func (c *Coordinator) Sync() {
	live := make(map[string]bool)
	for _, el := range c.store.Elements() {
		if el.Type.Connectable() {
			live[el.ID] = true
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for id := range live {
		if _, ok := c.nodes[id]; !ok {
			c.mountLocked(id)
		}
	}
	for id := range c.nodes {
		if !live[id] {
			c.unmountLocked(id)
		}
	}
}

func (c *Coordinator) mountLocked(id string) {
	n := &node{}
	n.unsubscribe = c.bus.Subscribe(func(e Event) { c.handle(id, e) })
	c.nodes[id] = n
}

func (c *Coordinator) unmountLocked(id string) {
	n, ok := c.nodes[id]
	if !ok {
		return
	}
	n.stopTimers()
	n.unsubscribe()
	delete(c.nodes, id)
	delete(c.lines, id)
}

// Mounted reports the ids currently listening on the bus, sorted.
func (c *Coordinator) Mounted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// handle is the per-node listener. The target node of a successful attempt
// commits both sides of the pair as one store update, so a single undo
// restores the pair to disconnected.
func (c *Coordinator) handle(id string, e Event) {
	switch e.Type {
	case EventAttempt:
		if e.TargetID != id {
			return
		}
		if !e.Success {
			c.pulse(id, true)
			return
		}
		c.connectPair(e.SourceID, id, e.Color)
		c.pulse(id, false)
		c.bus.Publish(Event{
			Type:     EventConfirm,
			SourceID: e.SourceID,
			TargetID: id,
			GroupID:  e.GroupID,
			Success:  true,
			Color:    e.Color,
		})
	case EventConfirm:
		if e.SourceID != id {
			return
		}
		if !c.IsConnected(id) {
			c.log.Warnf("confirm for %s arrived but the pair is not connected", id)
		}
	case EventReset:
		el, ok := c.store.Element(id)
		if !ok || el.Connection().GroupID != e.GroupID {
			return
		}
		if e.SourceID == id {
			c.disconnectGroup(e.GroupID)
		}
		c.mu.Lock()
		delete(c.lines, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) connectPair(source, target, color string) {
	side := func(id, other string) builder.Patch {
		return builder.Patch{ID: id, Properties: domain.Properties{
			domain.PropConnectionState: string(domain.ConnectionConnected),
			domain.PropConnectedNodeID: other,
			domain.PropLineColor:       color,
		}}
	}
	if _, err := c.store.UpdateElements([]builder.Patch{side(target, source), side(source, target)}); err != nil {
		c.log.Errorf("connect %s <-> %s: %v", source, target, err)
	}
}

func (c *Coordinator) disconnectGroup(group string) {
	var patches []builder.Patch
	for _, id := range groupMembers(c.store.Elements(), group) {
		patches = append(patches, builder.Patch{ID: id, Properties: domain.Properties{
			domain.PropConnectionState: string(domain.ConnectionDisconnected),
			domain.PropConnectedNodeID: nil,
		}})
	}
	if _, err := c.store.UpdateElements(patches); err != nil {
		c.log.Errorf("reset group %s: %v", group, err)
	}
}

// pulse sets targeted (and shaking for failures) on id and schedules their
// auto-clear.
func (c *Coordinator) pulse(id string, shake bool) {
	c.mu.Lock()
	n, ok := c.nodes[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	n.visual.Targeted = true
	n.targetGen++
	gen := n.targetGen
	if n.targetTimer != nil {
		n.targetTimer.Stop()
	}
	n.targetTimer = c.opts.Scheduler.AfterFunc(c.opts.TargetedTimeout, func() {
		c.clearVisual(id, n, func(n *node) bool {
			if n.targetGen != gen {
				return false
			}
			n.visual.Targeted = false
			n.targetTimer = nil
			return true
		})
	})
	if shake {
		n.visual.Shaking = true
		n.shakeGen++
		sgen := n.shakeGen
		if n.shakeTimer != nil {
			n.shakeTimer.Stop()
		}
		n.shakeTimer = c.opts.Scheduler.AfterFunc(c.opts.ShakeTimeout, func() {
			c.clearVisual(id, n, func(n *node) bool {
				if n.shakeGen != sgen {
					return false
				}
				n.visual.Shaking = false
				n.shakeTimer = nil
				return true
			})
		})
	}
	v := n.visual
	c.mu.Unlock()
	c.bus.Publish(Event{Type: EventVisual, TargetID: id, Visual: &v})
}

func (c *Coordinator) clearVisual(id string, n *node, apply func(*node) bool) {
	c.mu.Lock()
	if c.nodes[id] != n || !apply(n) {
		c.mu.Unlock()
		return
	}
	v := n.visual
	c.mu.Unlock()
	c.bus.Publish(Event{Type: EventVisual, TargetID: id, Visual: &v})
}

func (c *Coordinator) Visual(id string) Visual {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[id]; ok {
		return n.visual
	}
	return Visual{}
}

func findElement(elements []domain.Element, id string) (domain.Element, bool) {
	for _, el := range elements {
		if el.ID == id {
			return el, true
		}
	}
	return domain.Element{}, false
}

func groupMembers(elements []domain.Element, group string) []string {
	var out []string
	for _, el := range elements {
		if el.Type.Connectable() && el.Connection().GroupID == group {
			out = append(out, el.ID)
		}
	}
	return out
}

// FindPairedNode returns the only other connection node sharing id's group.
func FindPairedNode(elements []domain.Element, id string) (string, error) {
	el, ok := findElement(elements, id)
	if !ok || !el.Type.Connectable() {
		return "", fmt.Errorf("%w: %q", ErrNotConnectable, id)
	}
	group := el.Connection().GroupID
	if group == "" {
		return "", fmt.Errorf("%w: %q has no connection group", ErrNoPair, id)
	}
	members := groupMembers(elements, group)
	if len(members) > 2 {
		return "", fmt.Errorf("%w: group %q has %d nodes", ErrGroupOverflow, group, len(members))
	}
	for _, m := range members {
		if m != id {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoPair, id)
}

// Attempt broadcasts a connection attempt from sourceID towards targetID.
// An empty targetID resolves to the paired node. A mismatched target is not
// an error: the event carries Success=false and the wrong node shakes.
func (c *Coordinator) Attempt(sourceID, targetID string) (Event, error) {
	elements := c.store.Elements()
	pair, err := FindPairedNode(elements, sourceID)
	if err != nil {
		c.log.Warnf("attempt from %s refused: %v", sourceID, err)
		return Event{}, err
	}
	if targetID == "" {
		targetID = pair
	}
	target, ok := findElement(elements, targetID)
	if !ok || !target.Type.Connectable() || targetID == sourceID {
		return Event{}, fmt.Errorf("%w: %q", ErrNotConnectable, targetID)
	}
	if isConnected(elements, sourceID) {
		return Event{}, fmt.Errorf("%w: %q", ErrAlreadyConnected, sourceID)
	}
	src, _ := findElement(elements, sourceID)
	color := src.Connection().LineColor
	if color == "" {
		color = DefaultLineColor
	}
	ev := Event{
		Type:     EventAttempt,
		SourceID: sourceID,
		TargetID: targetID,
		GroupID:  src.Connection().GroupID,
		Success:  targetID == pair,
		Color:    color,
	}
	c.bus.Publish(ev)

	fb := Event{Type: EventFeedback, SourceID: sourceID, TargetID: targetID, Success: ev.Success, Color: color, FeedbackType: FeedbackSuccess}
	if !ev.Success {
		fb.Color = ""
		fb.FeedbackType = FeedbackError
	}
	c.bus.Publish(fb)
	return ev, nil
}

// IsConnected requires both nodes of the pair to be connected and to point
// at each other.
func (c *Coordinator) IsConnected(id string) bool {
	return isConnected(c.store.Elements(), id)
}

func isConnected(elements []domain.Element, id string) bool {
	a, ok := findElement(elements, id)
	if !ok || !a.Type.Connectable() {
		return false
	}
	ca := a.Connection()
	if ca.State != domain.ConnectionConnected || ca.ConnectedNodeID == "" {
		return false
	}
	b, ok := findElement(elements, ca.ConnectedNodeID)
	if !ok {
		return false
	}
	cb := b.Connection()
	return cb.State == domain.ConnectionConnected && cb.ConnectedNodeID == id && cb.GroupID == ca.GroupID
}

// Reset disconnects both nodes of id's group and drops their cached lines.
func (c *Coordinator) Reset(id string) error {
	el, ok := c.store.Element(id)
	if !ok || !el.Type.Connectable() {
		return fmt.Errorf("%w: %q", ErrNotConnectable, id)
	}
	cp := el.Connection()
	if !cp.AllowRetry {
		return fmt.Errorf("%w: %q", ErrRetryNotAllowed, id)
	}
	if cp.GroupID == "" {
		return fmt.Errorf("%w: %q has no connection group", ErrNoPair, id)
	}
	c.bus.Publish(Event{Type: EventReset, SourceID: id, GroupID: cp.GroupID})
	return nil
}

// Line returns the geometry of id's connection, centre to centre. Results are
// cached until the element model changes.
func (c *Coordinator) Line(id string) (Line, bool) {
	c.mu.Lock()
	if l, ok := c.lines[id]; ok {
		c.mu.Unlock()
		return l, true
	}
	c.mu.Unlock()

	elements := c.store.Elements()
	if !isConnected(elements, id) {
		return Line{}, false
	}
	a, _ := findElement(elements, id)
	other := a.Connection().ConnectedNodeID
	x1, y1 := center(elements, id)
	x2, y2 := center(elements, other)
	l := Line{SourceID: id, TargetID: other, X1: x1, Y1: y1, X2: x2, Y2: y2, Color: a.Connection().LineColor}

	c.mu.Lock()
	if _, mounted := c.nodes[id]; mounted {
		c.lines[id] = l
	}
	c.mu.Unlock()
	return l, true
}

// Lines returns one line per connected pair.
func (c *Coordinator) Lines() []Line {
	var out []Line
	for _, id := range c.Mounted() {
		l, ok := c.Line(id)
		if ok && id < l.TargetID {
			out = append(out, l)
		}
	}
	return out
}

func (c *Coordinator) CachedLines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func center(elements []domain.Element, id string) (float64, float64) {
	el, _ := findElement(elements, id)
	g := el.Geometry()
	x, y := builder.AbsolutePosition(elements, id)
	return x + g.Width/2, y + g.Height/2
}

// Close unmounts every node, cancelling pending timers.
func (c *Coordinator) Close() {
	if c.detachStore != nil {
		c.detachStore()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.nodes {
		c.unmountLocked(id)
	}
	c.lines = make(map[string]Line)
	c.closed = true
}
