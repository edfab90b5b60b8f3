package chat

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassaundra/p2p-chat/pkg/types"
)

func TestValidatorSignature(t *testing.T) {
	clk := newTestClock()
	alice := newTestIdentity(t)
	v := NewValidator(NewManifestStore(), NewNicknameDirectory(), clk)

	t.Run("valid signature accepted", func(t *testing.T) {
		env := sealEnvelope(t, alice, nowMilli(clk), types.MessageSend{Body: []byte("hi"), Kind: types.KindNormal})
		assert.True(t, v.Validate(env).IsAccept())
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		env := sealEnvelope(t, alice, nowMilli(clk), types.MessageSend{Body: []byte("hi"), Kind: types.KindNormal})
		env.Payload = types.MessageSend{Body: []byte("hijacked"), Kind: types.KindNormal}
		verdict := v.Validate(env)
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonBadSignature, verdict.Reason)
	})

	t.Run("tampered signature rejected", func(t *testing.T) {
		env := sealEnvelope(t, alice, nowMilli(clk), types.MessageSend{Body: []byte("hi"), Kind: types.KindNormal})
		env.Signature[0] ^= 0xff
		verdict := v.Validate(env)
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonBadSignature, verdict.Reason)
	})

	t.Run("signature from another key rejected", func(t *testing.T) {
		mallory := newTestIdentity(t)
		env := sealEnvelope(t, mallory, nowMilli(clk), types.MessageSend{Body: []byte("hi"), Kind: types.KindNormal})
		// 冒用 alice 的身份
		env.Sender = alice.PeerID()
		verdict := v.Validate(env)
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonBadSignature, verdict.Reason)
	})
}

func TestValidatorFreshness(t *testing.T) {
	clk := newTestClock()
	alice := newTestIdentity(t)
	v := NewValidator(NewManifestStore(), NewNicknameDirectory(), clk)

	payload := types.MessageSend{Body: []byte("hi"), Kind: types.KindNormal}

	cases := []struct {
		name   string
		offset time.Duration
		accept bool
	}{
		{"current time", 0, true},
		{"within stale window", -9 * time.Minute, true},
		{"on stale boundary", -DefaultStaleWindow, true},
		{"beyond stale window", -DefaultStaleWindow - time.Millisecond, false},
		{"slightly ahead", time.Minute, true},
		{"on future boundary", DefaultFutureSkew, true},
		{"beyond future skew", DefaultFutureSkew + time.Millisecond, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := clk.Now().Add(tc.offset).UnixMilli()
			env := sealEnvelope(t, alice, ts, payload)
			verdict := v.Validate(env)
			if tc.accept {
				assert.True(t, verdict.IsAccept())
			} else {
				require.True(t, verdict.IsReject())
				assert.Equal(t, types.ReasonStaleOrFuture, verdict.Reason)
			}
		})
	}
}

func TestValidatorChannelCreate(t *testing.T) {
	clk := newTestClock()
	alice := newTestIdentity(t)
	bob := newTestIdentity(t)

	t.Run("valid create accepted", func(t *testing.T) {
		v := NewValidator(NewManifestStore(), NewNicknameDirectory(), clk)
		env := sealEnvelope(t, alice, nowMilli(clk), types.ChannelCreate{
			ID:           "general",
			Owner:        alice.PeerID(),
			Participants: []types.PeerID{alice.PeerID()},
		})
		assert.True(t, v.Validate(env).IsAccept())
	})

	t.Run("existing channel rejected", func(t *testing.T) {
		store := NewManifestStore()
		store.ApplyCreate(testManifest("general", 1, alice.PeerID()))
		v := NewValidator(store, NewNicknameDirectory(), clk)

		env := sealEnvelope(t, bob, nowMilli(clk), types.ChannelCreate{
			ID:           "general",
			Owner:        bob.PeerID(),
			Participants: []types.PeerID{bob.PeerID()},
		})
		verdict := v.Validate(env)
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonVersionConflict, verdict.Reason)
	})

	t.Run("empty participants rejected", func(t *testing.T) {
		v := NewValidator(NewManifestStore(), NewNicknameDirectory(), clk)
		env := sealEnvelope(t, alice, nowMilli(clk), types.ChannelCreate{
			ID:    "general",
			Owner: alice.PeerID(),
		})
		verdict := v.Validate(env)
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonEmptyParticipants, verdict.Reason)
	})

	t.Run("owner differs from sender rejected", func(t *testing.T) {
		v := NewValidator(NewManifestStore(), NewNicknameDirectory(), clk)
		env := sealEnvelope(t, bob, nowMilli(clk), types.ChannelCreate{
			ID:           "general",
			Owner:        alice.PeerID(),
			Participants: []types.PeerID{alice.PeerID()},
		})
		verdict := v.Validate(env)
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonMalformedEnvelope, verdict.Reason)
	})
}

func TestValidatorChannelUpgrade(t *testing.T) {
	clk := newTestClock()
	alice := newTestIdentity(t)
	bob := newTestIdentity(t)

	newStore := func() *ManifestStore {
		s := NewManifestStore()
		s.ApplyCreate(testManifest("general", 1, alice.PeerID()))
		return s
	}

	t.Run("higher version accepted", func(t *testing.T) {
		v := NewValidator(newStore(), NewNicknameDirectory(), clk)
		env := sealEnvelope(t, alice, nowMilli(clk), types.ChannelUpgrade{
			ID:           "general",
			Version:      2,
			Owner:        alice.PeerID(),
			Participants: []types.PeerID{alice.PeerID(), bob.PeerID()},
		})
		assert.True(t, v.Validate(env).IsAccept())
	})

	t.Run("unknown channel rejected", func(t *testing.T) {
		v := NewValidator(NewManifestStore(), NewNicknameDirectory(), clk)
		env := sealEnvelope(t, alice, nowMilli(clk), types.ChannelUpgrade{
			ID:           "nowhere",
			Version:      2,
			Owner:        alice.PeerID(),
			Participants: []types.PeerID{alice.PeerID()},
		})
		verdict := v.Validate(env)
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonUnknownChannel, verdict.Reason)
	})

	t.Run("lower version rejected", func(t *testing.T) {
		store := newStore()
		store.ApplyUpgrade(testManifest("general", 5, alice.PeerID()))
		v := NewValidator(store, NewNicknameDirectory(), clk)

		env := sealEnvelope(t, alice, nowMilli(clk), types.ChannelUpgrade{
			ID:           "general",
			Version:      3,
			Owner:        alice.PeerID(),
			Participants: []types.PeerID{alice.PeerID()},
		})
		verdict := v.Validate(env)
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonNonIncreasingVersion, verdict.Reason)
	})

	t.Run("equal version identical content ignored", func(t *testing.T) {
		v := NewValidator(newStore(), NewNicknameDirectory(), clk)
		env := sealEnvelope(t, alice, nowMilli(clk), types.ChannelUpgrade{
			ID:           "general",
			Version:      1,
			Owner:        alice.PeerID(),
			Participants: []types.PeerID{alice.PeerID()},
		})
		verdict := v.Validate(env)
		assert.Equal(t, types.VerdictIgnore, verdict.Kind)
	})

	t.Run("equal version concurrent candidate accepted", func(t *testing.T) {
		// 并发升级候选必须送达存储做确定性裁决
		v := NewValidator(newStore(), NewNicknameDirectory(), clk)
		env := sealEnvelope(t, alice, nowMilli(clk), types.ChannelUpgrade{
			ID:           "general",
			Version:      1,
			Owner:        alice.PeerID(),
			Participants: []types.PeerID{alice.PeerID(), bob.PeerID()},
		})
		assert.True(t, v.Validate(env).IsAccept())
	})

	t.Run("empty participants rejected", func(t *testing.T) {
		v := NewValidator(newStore(), NewNicknameDirectory(), clk)
		env := sealEnvelope(t, alice, nowMilli(clk), types.ChannelUpgrade{
			ID:      "general",
			Version: 2,
			Owner:   alice.PeerID(),
		})
		verdict := v.Validate(env)
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonEmptyParticipants, verdict.Reason)
	})
}

func TestValidatorMessages(t *testing.T) {
	clk := newTestClock()
	alice := newTestIdentity(t)
	v := NewValidator(NewManifestStore(), NewNicknameDirectory(), clk)

	t.Run("max body accepted", func(t *testing.T) {
		env := sealEnvelope(t, alice, nowMilli(clk), types.MessageSend{
			Body: bytes.Repeat([]byte("a"), types.MaxMessageBody),
			Kind: types.KindNormal,
		})
		assert.True(t, v.Validate(env).IsAccept())
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		// 超限消息体无法通过编码构造签名信封，直接检查变体规则
		verdict := v.validateMessage(types.MessageSend{
			Body: bytes.Repeat([]byte("a"), types.MaxMessageBody+1),
			Kind: types.KindNormal,
		})
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonPayloadTooLarge, verdict.Reason)
	})

	t.Run("unknown kind rejected", func(t *testing.T) {
		verdict := v.validateMessage(types.MessageSend{Body: []byte("hi"), Kind: types.MessageKind(42)})
		require.True(t, verdict.IsReject())
		assert.Equal(t, types.ReasonUnknownMessageType, verdict.Reason)
	})

	t.Run("me action accepted", func(t *testing.T) {
		env := sealEnvelope(t, alice, nowMilli(clk), types.MessageSend{Body: []byte("waves"), Kind: types.KindMe})
		assert.True(t, v.Validate(env).IsAccept())
	})
}

func TestValidatorNicknameAlwaysAccepted(t *testing.T) {
	clk := newTestClock()
	alice := newTestIdentity(t)

	nicknames := NewNicknameDirectory()
	// 目录中已有更新的记录，过期变更仍被接受，由 LWW 合并吸收
	nicknames.Set(alice.PeerID(), "fresh", nowMilli(clk))

	v := NewValidator(NewManifestStore(), nicknames, clk)
	env := sealEnvelope(t, alice, nowMilli(clk)-time.Minute.Milliseconds(), types.ChangeNickname{Nickname: "stale"})
	assert.True(t, v.Validate(env).IsAccept())
}

func TestValidatorFreshnessWindowOverride(t *testing.T) {
	clk := newTestClock()
	alice := newTestIdentity(t)
	v := NewValidator(NewManifestStore(), NewNicknameDirectory(), clk)
	v.SetFreshnessWindow(time.Second, time.Second)

	env := sealEnvelope(t, alice, clk.Now().Add(-2*time.Second).UnixMilli(), types.MessageSend{Body: []byte("hi"), Kind: types.KindNormal})
	verdict := v.Validate(env)
	require.True(t, verdict.IsReject())
	assert.Equal(t, types.ReasonStaleOrFuture, verdict.Reason)
}
