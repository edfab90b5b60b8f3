// Package main 提供 p2p-chat 命令行入口
//
// 在单进程内启动多个节点并接入同一个 loopback 路由中心，
// 第一个节点绑定交互式 REPL，其余节点回显收到的事件。
// 用于演示协议的验证、收敛与成员管理行为。
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	p2pchat "github.com/cassaundra/p2p-chat"
	"github.com/cassaundra/p2p-chat/internal/protocol/chat"
	"github.com/cassaundra/p2p-chat/internal/transport/loopback"
	"github.com/cassaundra/p2p-chat/pkg/lib/log"
	"github.com/cassaundra/p2p-chat/pkg/types"
)

var logger = log.Logger("p2p-chat/cmd")

var (
	peerCount = flag.Int("peers", 3, "进程内节点数量")
	nick      = flag.String("nick", "", "交互节点的昵称")
	dataDir   = flag.String("data-dir", "", "数据目录（空 = 内存存储）")
	verbose   = flag.Bool("verbose", false, "输出调试日志")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *verbose {
		log.SetLevel(log.LevelDebug)
	} else {
		log.SetLevel(log.LevelWarn)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	hub := loopback.NewHub()

	nodes, err := startNodes(ctx, hub)
	if err != nil {
		return err
	}
	defer func() {
		for _, n := range nodes {
			_ = n.Close()
		}
	}()

	local := nodes[0]
	fmt.Printf("本地节点: %s\n", local.ID())
	for i, n := range nodes[1:] {
		fmt.Printf("对端 %d:   %s\n", i+1, n.ID())
	}
	fmt.Println("输入 /help 查看命令")

	// 后台节点只回显事件
	for _, n := range nodes[1:] {
		go echoEvents(n)
	}
	go printEvents(local)

	return repl(ctx, local, nodes)
}

// startNodes 创建并启动所有节点
func startNodes(ctx context.Context, hub *loopback.Hub) ([]*p2pchat.Node, error) {
	nodes := make([]*p2pchat.Node, 0, *peerCount)
	for i := 0; i < *peerCount; i++ {
		opts := []p2pchat.Option{p2pchat.WithHub(hub)}
		if *dataDir == "" {
			opts = append(opts, p2pchat.WithInMemory())
		} else {
			opts = append(opts, p2pchat.WithDataDir(fmt.Sprintf("%s/peer%d", *dataDir, i)))
		}
		if i == 0 && *nick != "" {
			opts = append(opts, p2pchat.WithNickname(*nick))
		}

		node, err := p2pchat.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create node %d: %w", i, err)
		}
		if err := node.Start(ctx); err != nil {
			return nil, fmt.Errorf("start node %d: %w", i, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// repl 交互循环
func repl(ctx context.Context, local *p2pchat.Node, nodes []*p2pchat.Node) error {
	scanner := bufio.NewScanner(os.Stdin)
	var current types.ChannelID

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			if current.IsEmpty() {
				fmt.Println("未进入频道，先 /create 或 /join")
				continue
			}
			if err := local.SendMessage(ctx, current, line); err != nil {
				fmt.Printf("发送失败: %v\n", err)
			}
			continue
		}

		cmd, arg, _ := strings.Cut(line[1:], " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "help":
			printHelp()

		case "create":
			id := types.ChannelID(arg)
			if id.IsEmpty() {
				id = types.ChannelID(uuid.NewString())
			}
			manifest, err := local.CreateChannel(ctx, id)
			if err != nil {
				fmt.Printf("创建失败: %v\n", err)
				continue
			}
			current = manifest.ID
			fmt.Printf("已创建频道 %s (版本 %d)\n", manifest.ID, manifest.Version)

		case "join":
			if arg == "" {
				fmt.Println("用法: /join <channel>")
				continue
			}
			if err := local.RequestJoin(ctx, types.ChannelID(arg)); err != nil {
				fmt.Printf("请求失败: %v\n", err)
				continue
			}
			current = types.ChannelID(arg)
			fmt.Printf("已请求加入 %s\n", arg)

		case "leave":
			id := current
			if arg != "" {
				id = types.ChannelID(arg)
			}
			if id.IsEmpty() {
				fmt.Println("用法: /leave <channel>")
				continue
			}
			if err := local.RequestLeave(ctx, id); err != nil {
				fmt.Printf("请求失败: %v\n", err)
				continue
			}
			fmt.Printf("已请求离开 %s\n", id)

		case "add":
			channel, peer, ok := strings.Cut(arg, " ")
			if !ok {
				fmt.Println("用法: /add <channel> <peer>")
				continue
			}
			pid, err := types.ParsePeerID(strings.TrimSpace(peer))
			if err != nil {
				fmt.Printf("无效节点标识: %v\n", err)
				continue
			}
			manifest, err := local.AddParticipant(ctx, types.ChannelID(channel), pid)
			if err != nil {
				fmt.Printf("添加失败: %v\n", err)
				continue
			}
			fmt.Printf("频道 %s 现有 %d 个成员 (版本 %d)\n", manifest.ID, len(manifest.Participants), manifest.Version)

		case "remove":
			channel, peer, ok := strings.Cut(arg, " ")
			if !ok {
				fmt.Println("用法: /remove <channel> <peer>")
				continue
			}
			pid, err := types.ParsePeerID(strings.TrimSpace(peer))
			if err != nil {
				fmt.Printf("无效节点标识: %v\n", err)
				continue
			}
			manifest, err := local.RemoveParticipant(ctx, types.ChannelID(channel), pid)
			if err != nil {
				fmt.Printf("移除失败: %v\n", err)
				continue
			}
			fmt.Printf("频道 %s 现有 %d 个成员 (版本 %d)\n", manifest.ID, len(manifest.Participants), manifest.Version)

		case "nick":
			if arg == "" {
				fmt.Println("用法: /nick <name>")
				continue
			}
			if err := local.SetNickname(ctx, arg); err != nil {
				fmt.Printf("设置失败: %v\n", err)
			}

		case "me":
			if current.IsEmpty() {
				fmt.Println("未进入频道")
				continue
			}
			if err := local.SendAction(ctx, current, arg); err != nil {
				fmt.Printf("发送失败: %v\n", err)
			}

		case "channels":
			for _, m := range local.Channels() {
				marker := " "
				if m.ID == current {
					marker = "*"
				}
				fmt.Printf("%s %s  版本 %d  成员 %d  状态 %s\n",
					marker, m.ID, m.Version, len(m.Participants), local.MembershipState(m.ID))
			}

		case "peers":
			for _, n := range nodes {
				fmt.Printf("%s  %s\n", n.ID(), displayName(n, n.ID()))
			}

		case "switch":
			if arg == "" {
				fmt.Println("用法: /switch <channel>")
				continue
			}
			current = types.ChannelID(arg)

		case "quit", "exit":
			return nil

		default:
			fmt.Printf("未知命令: /%s\n", cmd)
		}
	}
}

// displayName 返回展示名，过长时截断
func displayName(n *p2pchat.Node, peer types.PeerID) string {
	const maxDisplay = 20
	name := n.DisplayName(peer)
	runes := []rune(name)
	if len(runes) > maxDisplay {
		return string(runes[:maxDisplay]) + "…"
	}
	return name
}

// printEvents 打印本地节点事件
func printEvents(n *p2pchat.Node) {
	for ev := range n.Events() {
		switch e := ev.(type) {
		case chat.EventMessage:
			if e.Kind == types.KindMe {
				fmt.Printf("\r* %s %s\n> ", displayName(n, e.Sender), e.Body)
			} else {
				fmt.Printf("\r<%s> %s\n> ", displayName(n, e.Sender), e.Body)
			}
		case chat.EventNickname:
			fmt.Printf("\r%s 现在叫 %s\n> ", e.Peer.ShortString(), e.Nickname)
		case chat.EventChannelUpdated:
			fmt.Printf("\r频道 %s 更新到版本 %d\n> ", e.Manifest.ID, e.Manifest.Version)
		case chat.EventMembershipChanged:
			fmt.Printf("\r频道 %s 成员状态: %s\n> ", e.Channel, e.State)
		case chat.EventJoinRequested:
			fmt.Printf("\r%s 请求加入 %s\n> ", e.Peer.ShortString(), e.Channel)
		case chat.EventLeaveRequested:
			fmt.Printf("\r%s 请求离开 %s\n> ", e.Peer.ShortString(), e.Channel)
		}
	}
}

// echoEvents 后台节点消费事件，仅在调试级别记录
func echoEvents(n *p2pchat.Node) {
	for ev := range n.Events() {
		logger.Debug("background node event",
			"peer", n.ID().ShortString(),
			"event", fmt.Sprintf("%T", ev),
		)
	}
}

func printHelp() {
	fmt.Println(`命令:
  /create [id]          创建频道（缺省生成随机 ID）
  /join <channel>       请求加入频道
  /leave [channel]      请求离开频道
  /add <channel> <peer> 添加成员（仅所有者）
  /remove <channel> <peer> 移除成员（仅所有者）
  /nick <name>          设置昵称
  /me <action>          发送动作消息
  /channels             列出已知频道
  /peers                列出进程内节点
  /switch <channel>     切换当前频道
  /quit                 退出
其他输入作为消息发送到当前频道`)
}
