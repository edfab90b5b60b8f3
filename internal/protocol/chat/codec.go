package chat

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/cassaundra/p2p-chat/pkg/types"
)

// 编码常量
const (
	// codecVersion 线格式版本
	codecVersion byte = 1

	// MaxEnvelopeSize 单个信封的最大编码长度
	//
	// 消息体上限 4096 字节，加上标识符、签名与头部的余量。
	MaxEnvelopeSize = 16 * 1024

	// maxIDLength 字符串标识符（频道ID、昵称等）的解码上限
	maxIDLength = 4096

	// maxParticipants 单个清单成员数的解码上限
	maxParticipants = 4096

	// maxSenderLength 发送者 multihash 字节的解码上限
	maxSenderLength = 128

	// maxSignatureLength 签名字节的解码上限
	maxSignatureLength = 256
)

// ============================================================================
//                              编码
// ============================================================================

// Encode 将信封编码为线格式字节
//
// 线格式（大端序）：
//
//	[version:1][type:1][timestamp:8][sender][signature][payload...]
//
// 其中变长字段带 uint32 长度前缀。编码与解码执行相同的
// 模式检查，非法信封在本地即被拒绝构造。
func Encode(env *types.Envelope) ([]byte, error) {
	if env == nil || env.Payload == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrMalformedEnvelope)
	}

	var buf bytes.Buffer
	buf.WriteByte(codecVersion)
	buf.WriteByte(byte(env.Payload.Type()))

	if err := writeUint64(&buf, uint64(env.Timestamp)); err != nil {
		return nil, err
	}
	sender, err := env.Sender.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := writeBytes(&buf, sender); err != nil {
		return nil, err
	}
	if err := writeBytes(&buf, env.Signature); err != nil {
		return nil, err
	}

	if err := encodePayload(&buf, env.Payload); err != nil {
		return nil, err
	}

	if buf.Len() > MaxEnvelopeSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrEnvelopeTooLarge, buf.Len())
	}
	return buf.Bytes(), nil
}

// SigningBytes 返回信封的签名输入
//
// 即签名字段置空后的规范编码；签名与验证双方都使用它。
func SigningBytes(env *types.Envelope) ([]byte, error) {
	unsigned := *env
	unsigned.Signature = nil
	return Encode(&unsigned)
}

// encodePayload 按变体编码载荷
func encodePayload(buf *bytes.Buffer, payload types.Payload) error {
	switch p := payload.(type) {
	case types.ChannelCreate:
		if err := writeString(buf, string(p.ID)); err != nil {
			return err
		}
		if err := writeString(buf, string(p.Owner)); err != nil {
			return err
		}
		return writePeerList(buf, p.Participants)

	case types.ChannelUpgrade:
		if err := writeString(buf, string(p.ID)); err != nil {
			return err
		}
		if err := writeUint64(buf, p.Version); err != nil {
			return err
		}
		if err := writeString(buf, string(p.Owner)); err != nil {
			return err
		}
		return writePeerList(buf, p.Participants)

	case types.ChannelRequestJoin:
		return writeString(buf, string(p.ID))

	case types.ChannelRequestLeave:
		return writeString(buf, string(p.ID))

	case types.MessageSend:
		if len(p.Body) == 0 {
			return fmt.Errorf("%w: empty message body", ErrMalformedEnvelope)
		}
		if len(p.Body) > types.MaxMessageBody {
			return fmt.Errorf("%w: body is %d bytes", ErrMessageTooLarge, len(p.Body))
		}
		if !utf8.Valid(p.Body) {
			return fmt.Errorf("%w: body is not valid UTF-8", ErrMalformedEnvelope)
		}
		if err := writeBytes(buf, p.Body); err != nil {
			return err
		}
		buf.WriteByte(byte(p.Kind))
		return nil

	case types.ChangeNickname:
		if !utf8.ValidString(p.Nickname) {
			return fmt.Errorf("%w: nickname is not valid UTF-8", ErrMalformedEnvelope)
		}
		return writeString(buf, p.Nickname)

	default:
		return fmt.Errorf("%w: %T", ErrUnknownPayloadType, payload)
	}
}

// ============================================================================
//                              解码
// ============================================================================

// Decode 从线格式字节解析信封
//
// 任何模式违规（未知变体标签、缺失字段、超长消息体、
// 非法 UTF-8、尾部多余字节）都返回 ErrMalformedEnvelope
// 族的错误；解码失败从不中止后续消息的处理。
func Decode(data []byte) (*types.Envelope, error) {
	if len(data) > MaxEnvelopeSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrEnvelopeTooLarge, len(data))
	}
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedEnvelope)
	}
	if version != codecVersion {
		return nil, fmt.Errorf("%w: unsupported codec version %d", ErrMalformedEnvelope, version)
	}

	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: missing payload type", ErrMalformedEnvelope)
	}

	ts, err := readUint64(r)
	if err != nil {
		return nil, fmt.Errorf("%w: missing timestamp", ErrMalformedEnvelope)
	}

	senderRaw, err := readBytes(r, maxSenderLength)
	if err != nil {
		return nil, fmt.Errorf("%w: bad sender: %v", ErrMalformedEnvelope, err)
	}
	sender, err := types.PeerIDFromBytes(senderRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad sender: %v", ErrMalformedEnvelope, err)
	}

	sig, err := readBytes(r, maxSignatureLength)
	if err != nil {
		return nil, fmt.Errorf("%w: bad signature field: %v", ErrMalformedEnvelope, err)
	}

	payload, err := decodePayload(r, types.PayloadType(tag))
	if err != nil {
		return nil, err
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedEnvelope, r.Len())
	}

	return &types.Envelope{
		Timestamp: int64(ts),
		Sender:    sender,
		Signature: sig,
		Payload:   payload,
	}, nil
}

// decodePayload 按变体标签解码载荷
func decodePayload(r *bytes.Reader, tag types.PayloadType) (types.Payload, error) {
	switch tag {
	case types.PayloadChannelCreate:
		id, err := readString(r, maxIDLength)
		if err != nil {
			return nil, fmt.Errorf("%w: bad channel id: %v", ErrMalformedEnvelope, err)
		}
		owner, err := readPeerID(r)
		if err != nil {
			return nil, fmt.Errorf("%w: bad owner: %v", ErrMalformedEnvelope, err)
		}
		participants, err := readPeerList(r)
		if err != nil {
			return nil, fmt.Errorf("%w: bad participants: %v", ErrMalformedEnvelope, err)
		}
		return types.ChannelCreate{ID: types.ChannelID(id), Owner: owner, Participants: participants}, nil

	case types.PayloadChannelUpgrade:
		id, err := readString(r, maxIDLength)
		if err != nil {
			return nil, fmt.Errorf("%w: bad channel id: %v", ErrMalformedEnvelope, err)
		}
		version, err := readUint64(r)
		if err != nil {
			return nil, fmt.Errorf("%w: bad version: %v", ErrMalformedEnvelope, err)
		}
		owner, err := readPeerID(r)
		if err != nil {
			return nil, fmt.Errorf("%w: bad owner: %v", ErrMalformedEnvelope, err)
		}
		participants, err := readPeerList(r)
		if err != nil {
			return nil, fmt.Errorf("%w: bad participants: %v", ErrMalformedEnvelope, err)
		}
		return types.ChannelUpgrade{ID: types.ChannelID(id), Version: version, Owner: owner, Participants: participants}, nil

	case types.PayloadChannelRequestJoin:
		id, err := readString(r, maxIDLength)
		if err != nil {
			return nil, fmt.Errorf("%w: bad channel id: %v", ErrMalformedEnvelope, err)
		}
		return types.ChannelRequestJoin{ID: types.ChannelID(id)}, nil

	case types.PayloadChannelRequestLeave:
		id, err := readString(r, maxIDLength)
		if err != nil {
			return nil, fmt.Errorf("%w: bad channel id: %v", ErrMalformedEnvelope, err)
		}
		return types.ChannelRequestLeave{ID: types.ChannelID(id)}, nil

	case types.PayloadMessageSend:
		body, err := readBytes(r, MaxEnvelopeSize)
		if err != nil {
			return nil, fmt.Errorf("%w: bad body: %v", ErrMalformedEnvelope, err)
		}
		// 超限的消息体单独归类，使裁决能够报告 PayloadTooLarge
		if len(body) > types.MaxMessageBody {
			return nil, fmt.Errorf("%w: body is %d bytes", ErrMessageTooLarge, len(body))
		}
		if len(body) == 0 {
			return nil, fmt.Errorf("%w: empty message body", ErrMalformedEnvelope)
		}
		if !utf8.Valid(body) {
			return nil, fmt.Errorf("%w: body is not valid UTF-8", ErrMalformedEnvelope)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: missing message kind", ErrMalformedEnvelope)
		}
		// 未知的 kind 标签留给验证器裁决为 UnknownMessageType，
		// 这里只负责把字节解出来
		return types.MessageSend{Body: body, Kind: types.MessageKind(kind)}, nil

	case types.PayloadChangeNickname:
		nick, err := readString(r, maxIDLength)
		if err != nil {
			return nil, fmt.Errorf("%w: bad nickname: %v", ErrMalformedEnvelope, err)
		}
		return types.ChangeNickname{Nickname: nick}, nil

	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownPayloadType, tag)
	}
}

// ============================================================================
//                              编解码辅助
// ============================================================================

// writeUint64 写入大端序 uint64
func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// readUint64 读取大端序 uint64
func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// writeBytes 写入带 uint32 长度前缀的字节串
func writeBytes(w io.Writer, b []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBytes 读取带 uint32 长度前缀的字节串
func readBytes(r io.Reader, max int) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if int(n) > max {
		return nil, fmt.Errorf("length %d exceeds limit %d", n, max)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// writeString 写入带长度前缀的字符串
func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

// readString 读取带长度前缀的字符串并校验 UTF-8
func readString(r io.Reader, max int) (string, error) {
	b, err := readBytes(r, max)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("not valid UTF-8")
	}
	return string(b), nil
}

// writePeerList 写入成员列表
func writePeerList(w io.Writer, peers []types.PeerID) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(peers)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	for _, p := range peers {
		if err := writeString(w, string(p)); err != nil {
			return err
		}
	}
	return nil
}

// readPeerID 读取单个 PeerID
func readPeerID(r io.Reader) (types.PeerID, error) {
	s, err := readString(r, maxSenderLength*2)
	if err != nil {
		return types.EmptyPeerID, err
	}
	return types.ParsePeerID(s)
}

// readPeerList 读取成员列表
//
// 空列表在解码层是合法的（验证器负责 EmptyParticipants 裁决）。
func readPeerList(r io.Reader) ([]types.PeerID, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if int(n) > maxParticipants {
		return nil, fmt.Errorf("participant count %d exceeds limit %d", n, maxParticipants)
	}
	peers := make([]types.PeerID, 0, n)
	for i := uint32(0); i < n; i++ {
		p, err := readPeerID(r)
		if err != nil {
			return nil, err
		}
		peers = append(peers, p)
	}
	return peers, nil
}
