package chat

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassaundra/p2p-chat/pkg/types"
)

func TestCodecRoundTrip(t *testing.T) {
	alice := newTestIdentity(t)
	bob := newTestIdentity(t)

	payloads := []types.Payload{
		types.ChannelCreate{
			ID:           "general",
			Owner:        alice.PeerID(),
			Participants: []types.PeerID{alice.PeerID(), bob.PeerID()},
		},
		types.ChannelUpgrade{
			ID:           "general",
			Version:      3,
			Owner:        alice.PeerID(),
			Participants: []types.PeerID{alice.PeerID()},
		},
		types.ChannelRequestJoin{ID: "general"},
		types.ChannelRequestLeave{ID: "general"},
		types.MessageSend{Body: []byte("hello, 世界"), Kind: types.KindNormal},
		types.MessageSend{Body: []byte("waves"), Kind: types.KindMe},
		types.ChangeNickname{Nickname: "アリス"},
	}

	for _, payload := range payloads {
		t.Run(payload.Type().String(), func(t *testing.T) {
			env := sealEnvelope(t, alice, 1700000000000, payload)

			data, err := Encode(env)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, env.Timestamp, decoded.Timestamp)
			assert.Equal(t, env.Sender, decoded.Sender)
			assert.Equal(t, env.Signature, decoded.Signature)
			assert.Equal(t, env.Payload, decoded.Payload)
		})
	}
}

func TestSigningBytesExcludeSignature(t *testing.T) {
	alice := newTestIdentity(t)
	env := sealEnvelope(t, alice, 1700000000000, types.MessageSend{Body: []byte("hi"), Kind: types.KindNormal})

	// 签名字段不参与签名输入，否则签名无法闭合
	withSig, err := SigningBytes(env)
	require.NoError(t, err)

	unsigned := *env
	unsigned.Signature = nil
	withoutSig, err := SigningBytes(&unsigned)
	require.NoError(t, err)

	assert.Equal(t, withoutSig, withSig)
}

// TestCodecMaxBodyRoundTrip 恰好达到上限的消息体可编解码
func TestCodecMaxBodyRoundTrip(t *testing.T) {
	alice := newTestIdentity(t)

	body := bytes.Repeat([]byte("a"), types.MaxMessageBody)
	env := sealEnvelope(t, alice, 1700000000000, types.MessageSend{Body: body, Kind: types.KindNormal})

	data, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	msg, ok := decoded.Payload.(types.MessageSend)
	require.True(t, ok)
	assert.Equal(t, body, msg.Body)
}

func TestEncodeRejectsBadMessages(t *testing.T) {
	alice := newTestIdentity(t)

	t.Run("empty body", func(t *testing.T) {
		env := &types.Envelope{
			Timestamp: 1,
			Sender:    alice.PeerID(),
			Payload:   types.MessageSend{Body: nil, Kind: types.KindNormal},
		}
		_, err := Encode(env)
		assert.ErrorIs(t, err, ErrMalformedEnvelope)
	})

	t.Run("oversized body", func(t *testing.T) {
		env := &types.Envelope{
			Timestamp: 1,
			Sender:    alice.PeerID(),
			Payload:   types.MessageSend{Body: bytes.Repeat([]byte("a"), types.MaxMessageBody+1), Kind: types.KindNormal},
		}
		_, err := Encode(env)
		assert.ErrorIs(t, err, ErrMessageTooLarge)
	})

	t.Run("invalid utf8 body", func(t *testing.T) {
		env := &types.Envelope{
			Timestamp: 1,
			Sender:    alice.PeerID(),
			Payload:   types.MessageSend{Body: []byte{0xff, 0xfe}, Kind: types.KindNormal},
		}
		_, err := Encode(env)
		assert.ErrorIs(t, err, ErrMalformedEnvelope)
	})

	t.Run("nil payload", func(t *testing.T) {
		_, err := Encode(&types.Envelope{Timestamp: 1, Sender: alice.PeerID()})
		assert.ErrorIs(t, err, ErrMalformedEnvelope)
	})
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	alice := newTestIdentity(t)
	env := sealEnvelope(t, alice, 1700000000000, types.MessageSend{Body: []byte("hi"), Kind: types.KindNormal})
	valid, err := Encode(env)
	require.NoError(t, err)

	t.Run("empty input", func(t *testing.T) {
		_, err := Decode(nil)
		assert.ErrorIs(t, err, ErrMalformedEnvelope)
	})

	t.Run("unsupported version", func(t *testing.T) {
		data := append([]byte{}, valid...)
		data[0] = 99
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrMalformedEnvelope)
	})

	t.Run("unknown payload tag", func(t *testing.T) {
		data := append([]byte{}, valid...)
		data[1] = 200
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrUnknownPayloadType)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		data := append(append([]byte{}, valid...), 0x00)
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrMalformedEnvelope)
	})

	t.Run("truncated input", func(t *testing.T) {
		_, err := Decode(valid[:len(valid)-3])
		assert.ErrorIs(t, err, ErrMalformedEnvelope)
	})

	t.Run("whole envelope over limit", func(t *testing.T) {
		_, err := Decode(make([]byte, MaxEnvelopeSize+1))
		assert.ErrorIs(t, err, ErrEnvelopeTooLarge)
	})
}

// TestDecodeOversizedBody 手工构造超限消息体的线格式字节
//
// 编码侧拒绝构造这样的信封，但网络对端可能发来；
// 解码必须归类为 ErrMessageTooLarge 以便裁决报告 PayloadTooLarge。
func TestDecodeOversizedBody(t *testing.T) {
	alice := newTestIdentity(t)

	var buf bytes.Buffer
	buf.WriteByte(codecVersion)
	buf.WriteByte(byte(types.PayloadMessageSend))
	require.NoError(t, writeUint64(&buf, 1700000000000))
	sender, err := alice.PeerID().Bytes()
	require.NoError(t, err)
	require.NoError(t, writeBytes(&buf, sender))
	require.NoError(t, writeBytes(&buf, make([]byte, 64))) // 任意签名
	require.NoError(t, writeBytes(&buf, []byte(strings.Repeat("a", types.MaxMessageBody+1))))
	buf.WriteByte(byte(types.KindNormal))

	_, err = Decode(buf.Bytes())
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

// TestDecodeUnknownMessageKind 未知 kind 标签通过解码，留给验证器裁决
func TestDecodeUnknownMessageKind(t *testing.T) {
	alice := newTestIdentity(t)

	var buf bytes.Buffer
	buf.WriteByte(codecVersion)
	buf.WriteByte(byte(types.PayloadMessageSend))
	require.NoError(t, writeUint64(&buf, 1700000000000))
	sender, err := alice.PeerID().Bytes()
	require.NoError(t, err)
	require.NoError(t, writeBytes(&buf, sender))
	require.NoError(t, writeBytes(&buf, make([]byte, 64)))
	require.NoError(t, writeBytes(&buf, []byte("hi")))
	buf.WriteByte(77)

	env, err := Decode(buf.Bytes())
	require.NoError(t, err)
	msg, ok := env.Payload.(types.MessageSend)
	require.True(t, ok)
	assert.False(t, msg.Kind.Valid())
}

func TestDecodeEmptyParticipantsPassesCodec(t *testing.T) {
	alice := newTestIdentity(t)
	env := sealEnvelope(t, alice, 1700000000000, types.ChannelCreate{
		ID:    "general",
		Owner: alice.PeerID(),
	})
	data, err := Encode(env)
	require.NoError(t, err)

	// 空成员列表是验证器的职责，解码层放行
	decoded, err := Decode(data)
	require.NoError(t, err)
	create, ok := decoded.Payload.(types.ChannelCreate)
	require.True(t, ok)
	assert.Empty(t, create.Participants)
}
