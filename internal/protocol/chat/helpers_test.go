package chat

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/cassaundra/p2p-chat/internal/core/identity"
	"github.com/cassaundra/p2p-chat/pkg/types"
)

// newTestIdentity 生成测试身份
func newTestIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.Generate()
	require.NoError(t, err)
	return id
}

// sealEnvelope 以给定身份和时间戳构造签名信封
func sealEnvelope(t *testing.T, id *identity.Identity, ts int64, payload types.Payload) *types.Envelope {
	t.Helper()
	env := &types.Envelope{
		Timestamp: ts,
		Sender:    id.PeerID(),
		Payload:   payload,
	}
	signed, err := SigningBytes(env)
	require.NoError(t, err)
	sig, err := id.Sign(signed)
	require.NoError(t, err)
	env.Signature = sig
	return env
}

// newTestClock 返回固定在已知时刻的模拟时钟
func newTestClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	return clk
}

// nowMilli 模拟时钟的当前毫秒时间戳
func nowMilli(clk clock.Clock) int64 {
	return clk.Now().UnixMilli()
}

// testManifest 构造规范化的测试清单
func testManifest(id types.ChannelID, version uint64, owner types.PeerID, participants ...types.PeerID) types.Manifest {
	return types.Manifest{
		ID:           id,
		Version:      version,
		Owner:        owner,
		Participants: append([]types.PeerID{owner}, participants...),
	}.Canonical()
}
