// Package chat 实现去中心化群聊协议的状态核心
//
// 核心由四个层次组成，依赖顺序自下而上：
//
//	codec/validator  →  {清单存储, 昵称目录}  →  本地成员状态机  →  Service
//
// # 数据流
//
// 入站：信封字节 → Decode → Validate → (Accept 时) 应用到
// 清单存储 / 昵称目录 / 成员状态机，并镜像到分布式存储。
// 裁决值交回传输层，由传输层决定传播与亲和度调整。
//
// 出站：本地动作构造信封 → 签名 → 乐观应用到本地状态 →
// 交给传输层发布（fire-and-forget）。
//
// # 一致性
//
// 网络不保证消息顺序，可能乱序、重复、丢失。所有应用规则
// （版本检查、同版本冲突裁决、last-writer-wins 合并）都与
// 到达顺序无关，重复应用是幂等的。并发同版本升级由内容哈希
// 的确定性比较裁决，任意两个观察者收敛到同一胜者。
package chat
