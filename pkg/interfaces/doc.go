// Package interfaces 定义 p2p-chat 公共接口
//
// 协议核心不直接执行任何网络 I/O，对外部协作者的依赖
// 全部通过本包的接口注入：
//
//   - Transport: 基于主题的 pub/sub 叠加网络
//     （节点发现、加密握手、洪泛路由与亲和度评分均在其内部）
//   - Store: 最终一致的分布式键值存储
//     （存储与复制算法在其内部，核心只使用 put/get/watch 原语）
//
// 核心对每条入站消息只产出一个裁决值（types.Verdict），
// 传播抑制与发送者亲和度调整由传输层依据裁决自行完成，
// 依赖方向由此倒置。
package interfaces
