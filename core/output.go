package core

import (
	"context"
	"errors"
	"slices"

	"pkt.systems/swayless/internal/logx"
	"pkt.systems/swayless/schema"
)

// tagState is the borrow bookkeeping and focus history of one output.
//
// The focused and previous tags live in a 2-slot ring: cur indexes the
// focused slot and the other slot holds the previous tag. Switching writes
// the other slot and flips cur; toggling only flips cur.
type tagState struct {
	name     schema.OutputName
	ordinal  int
	ring     [2]schema.Tag
	cur      int
	borrowed map[schema.Tag]map[schema.ContainerID]struct{}
}

func newTagState(name schema.OutputName, ordinal int, initial schema.Tag) *tagState {
	return &tagState{
		name:     name,
		ordinal:  ordinal,
		ring:     [2]schema.Tag{initial, initial},
		borrowed: make(map[schema.Tag]map[schema.ContainerID]struct{}),
	}
}

func (s *tagState) focused() schema.Tag {
	return s.ring[s.cur]
}

func (s *tagState) previous() schema.Tag {
	return s.ring[1-s.cur]
}

func (s *tagState) workspace(tag schema.Tag) schema.WorkspaceName {
	return WorkspaceName(tag, s.ordinal)
}

func (s *tagState) hosting() bool {
	return len(s.borrowed) > 0
}

// switchTo returns every borrowed container, then focuses tag.
func (s *tagState) switchTo(ctx context.Context, c commander, tag schema.Tag) error {
	if tag == s.focused() {
		return nil
	}
	s.returnAll(ctx, c)
	if err := c.run(ctx, focusWorkspaceCommand(s.workspace(tag))); err != nil {
		return err
	}
	s.advance(tag)
	return nil
}

// toggleToPrevious is alt-tab: the focused and previous tags swap roles.
func (s *tagState) toggleToPrevious(ctx context.Context, c commander) error {
	if s.previous() == s.focused() {
		return nil
	}
	s.returnAll(ctx, c)
	if err := c.run(ctx, focusWorkspaceCommand(s.workspace(s.previous()))); err != nil {
		return err
	}
	s.cur = 1 - s.cur
	return nil
}

// observeFocus records a focus change that already happened on the window
// manager side. It reports whether the bookkeeping changed.
func (s *tagState) observeFocus(tag schema.Tag) bool {
	if tag == s.focused() {
		return false
	}
	s.advance(tag)
	return true
}

func (s *tagState) advance(tag schema.Tag) {
	s.ring[1-s.cur] = tag
	s.cur = 1 - s.cur
}

// borrowContainersFrom records ids as borrowed from owner and pulls the
// owner's windows onto the focused tag.
func (s *tagState) borrowContainersFrom(ctx context.Context, c commander, owner schema.Tag, ids []schema.ContainerID) error {
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		s.adopt(owner, id)
	}
	return c.run(ctx, moveWorkspaceContentsCommand(s.workspace(owner), s.workspace(s.focused())))
}

// returnContainers sends the containers borrowed from owner home. It
// reports false when nothing is borrowed from owner.
func (s *tagState) returnContainers(ctx context.Context, c commander, owner schema.Tag) bool {
	set := s.borrowed[owner]
	if len(set) == 0 {
		delete(s.borrowed, owner)
		return false
	}
	s.sendHome(ctx, c, owner, set)
	delete(s.borrowed, owner)
	return true
}

// returnAll sends every borrowed container home. Failed moves are logged and
// their records dropped.
func (s *tagState) returnAll(ctx context.Context, c commander) {
	owners := make([]schema.Tag, 0, len(s.borrowed))
	for owner := range s.borrowed {
		owners = append(owners, owner)
	}
	slices.Sort(owners)
	for _, owner := range owners {
		s.sendHome(ctx, c, owner, s.borrowed[owner])
	}
	clear(s.borrowed)
}

func (s *tagState) sendHome(ctx context.Context, c commander, owner schema.Tag, set map[schema.ContainerID]struct{}) {
	home := s.workspace(owner)
	for _, id := range sortedIDs(set) {
		if err := c.run(ctx, moveContainerCommand(id, home)); err != nil {
			var cmdErr *CommandError
			log := logx.WithTag(logx.WithOutput(c.log, s.name), owner)
			if errors.As(err, &cmdErr) {
				log.Info("borrowed container gone, dropping record", "container", id)
				continue
			}
			log.Warn("return container failed", "container", id, "err", err)
		}
	}
}

func (s *tagState) isBorrowing(tag schema.Tag) bool {
	return len(s.borrowed[tag]) > 0
}

// adopt records id as borrowed from owner, removing it from any other owner.
func (s *tagState) adopt(owner schema.Tag, id schema.ContainerID) {
	for tag, set := range s.borrowed {
		if tag != owner {
			delete(set, id)
			if len(set) == 0 {
				delete(s.borrowed, tag)
			}
		}
	}
	set := s.borrowed[owner]
	if set == nil {
		set = make(map[schema.ContainerID]struct{})
		s.borrowed[owner] = set
	}
	set[id] = struct{}{}
}

// unborrow forgets id wherever it is recorded.
func (s *tagState) unborrow(id schema.ContainerID) bool {
	for tag, set := range s.borrowed {
		if _, ok := set[id]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.borrowed, tag)
			}
			return true
		}
	}
	return false
}

func (s *tagState) snapshot() schema.OutputSnapshot {
	snap := schema.OutputSnapshot{
		Name:        s.name,
		Ordinal:     s.ordinal,
		FocusedTag:  s.focused(),
		PreviousTag: s.previous(),
		Workspace:   s.workspace(s.focused()),
	}
	if len(s.borrowed) > 0 {
		snap.Borrowed = make(map[schema.Tag][]schema.ContainerID, len(s.borrowed))
		for owner, set := range s.borrowed {
			snap.Borrowed[owner] = sortedIDs(set)
		}
	}
	return snap
}

func sortedIDs(set map[schema.ContainerID]struct{}) []schema.ContainerID {
	ids := make([]schema.ContainerID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
