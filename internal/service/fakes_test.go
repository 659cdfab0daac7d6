package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"sudooom.im.talk/internal/model"
	"sudooom.im.talk/internal/snowflake"
	"sudooom.im.talk/pkg/proto"
)

type fakeMembership struct {
	memberCount int
	members     map[int64]bool
	profiles    map[model.TalkType]map[int64]model.Profile
	err         error
}

func (f *fakeMembership) ActiveMemberCount(context.Context, int64) (int, error) {
	return f.memberCount, f.err
}

func (f *fakeMembership) IsMember(_ context.Context, userId, _ int64, _ model.TalkType) (bool, error) {
	return f.members[userId], f.err
}

func (f *fakeMembership) Profiles(context.Context, int64, []int64, []int64) (map[model.TalkType]map[int64]model.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.profiles == nil {
		return map[model.TalkType]map[int64]model.Profile{}, nil
	}
	return f.profiles, nil
}

type fakeIDs struct{ next int64 }

func (f *fakeIDs) Generate() snowflake.ID {
	f.next++
	return snowflake.ID(f.next)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*proto.TalkEvent
	err    error
}

func (f *fakePublisher) PublishTalkEvent(_ context.Context, event *proto.TalkEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

type fakePreviews struct {
	mu     sync.Mutex
	saved  map[string]model.LastMessage
	err    error
	onSave func(model.LastMessage)
}

func newFakePreviews() *fakePreviews {
	return &fakePreviews{saved: map[string]model.LastMessage{}}
}

func (f *fakePreviews) Save(_ context.Context, conversation string, msg model.LastMessage) error {
	if f.onSave != nil {
		f.onSave(msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved[conversation] = msg
	return nil
}

func (f *fakePreviews) ReadMany(_ context.Context, conversations []string) (map[string]model.LastMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]model.LastMessage{}
	for _, c := range conversations {
		if m, ok := f.saved[c]; ok {
			out[c] = m
		}
	}
	return out, nil
}

type unreadKey struct{ recipient, sender int64 }

type fakeUnread struct {
	mu     sync.Mutex
	counts map[unreadKey]int64
	err    error
}

func newFakeUnread() *fakeUnread {
	return &fakeUnread{counts: map[unreadKey]int64{}}
}

func (f *fakeUnread) Increment(_ context.Context, recipientId, senderId int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	k := unreadKey{recipientId, senderId}
	f.counts[k]++
	return f.counts[k], nil
}

func (f *fakeUnread) ReadMany(_ context.Context, recipientId int64, senderIds []int64) (map[int64]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := map[int64]int64{}
	for _, s := range senderIds {
		if n, ok := f.counts[unreadKey{recipientId, s}]; ok {
			out[s] = n
		}
	}
	return out, nil
}

type fakePresence struct {
	online  map[int64]bool
	queried [][]int64
}

func (f *fakePresence) OnlineSet(_ context.Context, userIds []int64) map[int64]bool {
	f.queried = append(f.queried, userIds)
	out := map[int64]bool{}
	for _, id := range userIds {
		if f.online[id] {
			out[id] = true
		}
	}
	return out
}

type fakeTalkList struct {
	entries []model.TalkListEntry
	changed bool
	err     error
}

func (f *fakeTalkList) ListActive(context.Context, int64) ([]model.TalkListEntry, error) {
	return f.entries, f.err
}

func (f *fakeTalkList) Create(_ context.Context, userId int64, talkType model.TalkType, receiverId int64, at time.Time) (*model.TalkListEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.TalkListEntry{Id: 1, UserId: userId, TalkType: talkType, ReceiverId: receiverId, CreatedAt: at, UpdatedAt: at}, nil
}

func (f *fakeTalkList) SetTop(context.Context, int64, int64, bool, time.Time) (bool, error) {
	return f.changed, f.err
}

func (f *fakeTalkList) Delete(context.Context, int64, int64, time.Time) (bool, error) {
	return f.changed, f.err
}

func (f *fakeTalkList) DeleteByType(context.Context, int64, model.TalkType, int64, time.Time) (bool, error) {
	return f.changed, f.err
}

func (f *fakeTalkList) SetDisturb(context.Context, int64, model.TalkType, int64, bool, time.Time) (bool, error) {
	return f.changed, f.err
}

var errCache = errors.New("cache unavailable")
