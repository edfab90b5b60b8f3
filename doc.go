// Package p2pchat 提供去中心化群聊协议的节点实现
//
// 架构分层：
//
//	p2pchat (本包)          对外门面：Node 生命周期与聊天 API
//	├── internal/protocol/chat   协议核心：编解码、验证、清单、昵称、成员状态
//	├── internal/core/identity   Ed25519 身份与节点标识
//	├── internal/core/storage    存储引擎（BadgerDB / 内存）
//	├── internal/store           分布式存储副本镜像
//	└── internal/transport       传输实现（进程内 loopback）
//
// 协议没有中心协调者：每个节点独立验证入站信封并产出裁决
// （接受/拒绝/忽略），状态合并规则是确定、可交换且幂等的，
// 任意到达顺序都收敛到同一状态。
//
// 最小使用示例：
//
//	hub := loopback.NewHub()
//	node, err := p2pchat.New(ctx, p2pchat.WithHub(hub), p2pchat.WithInMemory())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer node.Close()
//
//	if err := node.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	manifest, _ := node.CreateChannel(ctx, "general", nil)
//	node.SendMessage(ctx, manifest.ID, "hello")
//
//	for ev := range node.Events() {
//		switch e := ev.(type) {
//		case chat.EventMessage:
//			fmt.Printf("<%s> %s\n", node.DisplayName(e.Sender), e.Body)
//		}
//	}
package p2pchat
