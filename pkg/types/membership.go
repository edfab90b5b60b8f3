package types

// MembershipState 本地成员状态
//
// 本节点对单个频道的本地视图，由本地加入/离开意向与
// 所有者权威的成员列表共同驱动。没有终结状态，频道永不消亡。
type MembershipState uint8

const (
	// NotJoined 未加入
	NotJoined MembershipState = iota
	// JoinRequested 已发出加入请求，尚未出现在成员列表中
	JoinRequested
	// Member 已在所有者维护的成员列表中
	Member
	// LeaveRequested 已发出离开请求，尚未从成员列表中移除
	LeaveRequested
)

// String 返回成员状态的字符串表示
func (s MembershipState) String() string {
	switch s {
	case NotJoined:
		return "NotJoined"
	case JoinRequested:
		return "JoinRequested"
	case Member:
		return "Member"
	case LeaveRequested:
		return "LeaveRequested"
	default:
		return "Unknown"
	}
}
